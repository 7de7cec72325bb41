/*
Copyright 2024 FraudLens Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/fraudlens/caseflow/model"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("Error printing result: %v\n", err)
	}
}

// repairCommands rebuilds corrupted case timelines, either for one case or for every case.
func repairCommands(app *fraudLensInstance) *cobra.Command {
	var all bool
	var batchSize int

	cmd := &cobra.Command{
		Use:   "repair [case-id]",
		Short: "repair case timelines",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			if all {
				reports, err := app.caseFlow.RepairAll(ctx, model.SystemActor, batchSize)
				if err != nil {
					return err
				}
				changed := 0
				for _, r := range reports {
					if r.Changed() {
						changed++
					}
				}
				logrus.WithFields(logrus.Fields{"scanned": len(reports), "repaired": changed}).Info("timeline repair finished")
				printJSON(reports)
				return nil
			}

			if len(args) != 1 {
				return fmt.Errorf("pass a case id or --all")
			}
			report, err := app.caseFlow.RepairTimeline(ctx, args[0], model.SystemActor)
			if err != nil {
				return err
			}
			printJSON(report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "repair every case")
	cmd.Flags().IntVar(&batchSize, "batch-size", 100, "cases fetched per page when repairing every case")

	return cmd
}

// tokenCommands issues a session token for an actor, for operators and local testing.
func tokenCommands(app *fraudLensInstance) *cobra.Command {
	var actorID, role string

	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "start a session and print its bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			actor := model.Actor{ID: actorID, Role: model.Role(role)}
			if actor.ID == "" || !actor.Role.Valid() {
				return fmt.Errorf("an actor id and a role of user, admin or police are required")
			}

			sess, err := sessionStore(app).Start(context.Background(), actor)
			if err != nil {
				return err
			}
			token, err := tokenSigner(app.cnf).Sign(sess)
			if err != nil {
				return err
			}

			printJSON(map[string]interface{}{"session_id": sess.SessionID, "expires_at": sess.ExpiresAt, "token": token})
			return nil
		},
	}

	cmd.Flags().StringVar(&actorID, "actor", "", "actor id")
	cmd.Flags().StringVar(&role, "role", string(model.RoleUser), "actor role")

	return cmd
}

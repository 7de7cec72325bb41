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

package request

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// StatusError is returned by Call when the remote answers outside the 2xx range.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// ToJsonReq serializes payload into a buffer ready to be used as a request body.
func ToJsonReq(payload interface{}) (*bytes.Buffer, error) {
	c, e := json.Marshal(payload)
	if e != nil {
		return nil, e
	}
	return bytes.NewBuffer(c), nil
}

// NewJSONRequest builds a request carrying payload as JSON plus any extra headers.
func NewJSONRequest(method, url string, payload interface{}, headers map[string]string) (*http.Request, error) {
	body, err := ToJsonReq(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// Call sends req as JSON and decodes a JSON reply into response. An empty reply body is accepted.
// A non-2xx status yields a *StatusError.
func Call(req *http.Request, response interface{}) (*http.Response, error) {
	return CallWithTimeout(req, response, 0)
}

// CallWithTimeout is Call with a client timeout. Zero means no timeout.
func CallWithTimeout(req *http.Request, response interface{}, timeout time.Duration) (*http.Response, error) {
	req.Header.Set("Content-Type", "application/json")
	client := &http.Client{Timeout: timeout}

	resp, err := client.Do(req)
	if err != nil {
		return resp, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if len(bytes.TrimSpace(body)) == 0 || response == nil {
		return resp, nil
	}

	err = json.Unmarshal(body, response)
	return resp, err
}

package acceptance

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
)

func (s *Suite) postJSON(path string, body any) (*http.Response, map[string]any) {
	s.T().Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		s.T().Fatalf("Failed to marshal request body: %v", err)
	}

	resp, err := s.Client.Post(s.BaseURL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		s.T().Fatalf("POST %s failed: %v", path, err)
	}

	return resp, decodeBody(s, resp)
}

func (s *Suite) getJSON(path string) (*http.Response, map[string]any) {
	s.T().Helper()

	resp, err := s.Client.Get(s.BaseURL + path)
	if err != nil {
		s.T().Fatalf("GET %s failed: %v", path, err)
	}

	return resp, decodeBody(s, resp)
}

func decodeBody(s *Suite, resp *http.Response) map[string]any {
	s.T().Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		s.T().Fatalf("Failed to read response body: %v", err)
	}

	var out map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &out); err != nil {
			s.T().Fatalf("Failed to decode response %q: %v", raw, err)
		}
	}
	return out
}

func (s *Suite) signup(email, username, password string) {
	s.T().Helper()

	resp, body := s.postJSON("/api/v1/auth/signup", map[string]string{
		"email":    email,
		"username": username,
		"password": password,
	})
	if resp.StatusCode != http.StatusCreated {
		s.T().Fatalf("Signup returned %d: %v", resp.StatusCode, body)
	}
}

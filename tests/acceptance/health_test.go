package acceptance

import "net/http"

func (s *Suite) TestHealth() {
	resp, body := s.getJSON("/health")
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("pass", body["status"])
}

func (s *Suite) TestMetrics() {
	resp, err := s.Client.Get(s.BaseURL + "/metrics")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
}

package acceptance

import "net/http"

func (s *Suite) TestSignupLoginAndMe() {
	s.signup("kody@example.com", "kody", "S3cretPassw0rd")

	// The signup response set a session cookie; /me works immediately.
	resp, body := s.getJSON("/api/v1/auth/me")
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("kody", body["username"])
	s.Equal("kody@example.com", body["email"])
}

func (s *Suite) TestLoginWrongPassword() {
	s.signup("kody@example.com", "kody", "S3cretPassw0rd")

	resp, body := s.postJSON("/api/v1/auth/logout", nil)
	s.Equal(http.StatusOK, resp.StatusCode, "%v", body)

	resp, _ = s.postJSON("/api/v1/auth/login", map[string]string{
		"username": "kody",
		"password": "wrong-password",
	})
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	// Unknown usernames answer identically.
	resp, _ = s.postJSON("/api/v1/auth/login", map[string]string{
		"username": "nobody",
		"password": "wrong-password",
	})
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *Suite) TestLogoutEndsSession() {
	s.signup("kody@example.com", "kody", "S3cretPassw0rd")

	resp, _ := s.postJSON("/api/v1/auth/logout", nil)
	s.Equal(http.StatusOK, resp.StatusCode)

	resp, _ = s.getJSON("/api/v1/auth/me")
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *Suite) TestMeWithoutSession() {
	resp, body := s.getJSON("/api/v1/auth/me")
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	s.Equal("Unauthorized", body["error"])
}

func (s *Suite) TestDuplicateSignup() {
	s.signup("kody@example.com", "kody", "S3cretPassw0rd")

	resp, _ := s.postJSON("/api/v1/auth/signup", map[string]string{
		"email":    "kody@example.com",
		"username": "different",
		"password": "S3cretPassw0rd",
	})
	s.Equal(http.StatusConflict, resp.StatusCode)

	resp, _ = s.postJSON("/api/v1/auth/signup", map[string]string{
		"email":    "different@example.com",
		"username": "kody",
		"password": "S3cretPassw0rd",
	})
	s.Equal(http.StatusConflict, resp.StatusCode)
}

func (s *Suite) TestUserLookupRequiresPermission() {
	s.signup("kody@example.com", "kody", "S3cretPassw0rd")

	// A fresh account holds the "user" role, which only grants own-scoped
	// access; the lookup endpoint wants read:user:any.
	resp, body := s.getJSON("/api/v1/users/kody")
	s.Equal(http.StatusForbidden, resp.StatusCode)

	details, ok := body["details"].(map[string]any)
	s.Require().True(ok, "forbidden response carries details: %v", body)
	required, ok := details["required_permission"].(map[string]any)
	s.Require().True(ok)
	s.Equal("read", required["action"])
	s.Equal("user", required["entity"])
	s.Equal("any", required["access"])
}

func (s *Suite) TestConnectionsEmptyList() {
	s.signup("kody@example.com", "kody", "S3cretPassw0rd")

	resp, err := s.Client.Get(s.BaseURL + "/api/v1/settings/connections")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *Suite) TestUnknownProvider() {
	resp, err := s.Client.Get(s.BaseURL + "/api/v1/auth/nosuchprovider")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

package auth

// demoUsers are the development accounts the marketplace ships with, so
// a fresh process has identities that can log in before anyone
// registers.
var demoUsers = []struct {
	Email    string
	Name     string
	Password string
}{
	{"john@example.com", "John Doe", "password"},
	{"jane@example.com", "Jane Smith", "password"},
	{"alex@test.com", "Alex Johnson", "password"},
	{"sarah@test.com", "Sarah Wilson", "password"},
}

// SeedDemoUsers registers the built-in development accounts. Meant for
// startup on an empty store; a duplicate email fails like any other
// registration.
func (s *Service) SeedDemoUsers() error {
	for _, u := range demoUsers {
		if _, err := s.RegisterUser(u.Email, u.Name, u.Password); err != nil {
			return err
		}
	}
	return nil
}

package league

import "fmt"

// League is a competition listed by the feed; its ID is the key results carry
// in league_id.
type League struct {
	ID      string
	Name    string
	Country string
	Season  string
	LogoURL string
}

func (l League) Validate() error {
	if l.ID == "" {
		return fmt.Errorf("league id is required")
	}
	if l.Name == "" {
		return fmt.Errorf("league name is required")
	}

	return nil
}

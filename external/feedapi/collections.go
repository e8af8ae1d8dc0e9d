package feedapi

import (
	"context"
	"strconv"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/matchday-sync/internal/domain/fixture"
	"github.com/riskibarqy/matchday-sync/internal/domain/leader"
	"github.com/riskibarqy/matchday-sync/internal/domain/league"
	"github.com/riskibarqy/matchday-sync/internal/domain/news"
	"github.com/riskibarqy/matchday-sync/internal/domain/user"
)

const (
	pathFixtures      = "/fixtures"
	pathResults       = "/results"
	pathReports       = "/reports"
	pathAnnouncements = "/announcements"
	pathUsers         = "/users"
	pathLeagues       = "/leagues"
	pathLeaders       = "/leaders"
)

// A missing collection key decodes to an empty slice; the envelopes never
// fail on absent data.

type fixturesEnvelope struct {
	Data struct {
		Fixtures []fixtureItem `json:"fixtures"`
	} `json:"data"`
}

type resultsEnvelope struct {
	Data struct {
		Results []fixtureItem `json:"results"`
	} `json:"data"`
}

type reportsEnvelope struct {
	Data struct {
		Reports []articleItem `json:"reports"`
	} `json:"data"`
}

type announcementsEnvelope struct {
	Data struct {
		Announcements []articleItem `json:"announcements"`
	} `json:"data"`
}

type usersEnvelope struct {
	Data struct {
		Users []userItem `json:"users"`
	} `json:"data"`
}

type leaguesEnvelope struct {
	Data struct {
		Leagues []leagueItem `json:"leagues"`
	} `json:"data"`
}

type leadersEnvelope struct {
	Data struct {
		Leaders map[string][]leaderItem `json:"leaders"`
	} `json:"data"`
}

type fixtureItem struct {
	ID          flexID `json:"id"`
	Competition string `json:"competition"`
	HomeTeam    string `json:"home_team"`
	AwayTeam    string `json:"away_team"`
	LeagueID    flexID `json:"league_id"`
	Venue       string `json:"venue"`
	KickoffAt   string `json:"kickoff_at"`
	Date        string `json:"date"`
	Status      string `json:"status"`
	HomeScore   *int   `json:"home_score"`
	AwayScore   *int   `json:"away_score"`
}

type articleItem struct {
	ID          flexID `json:"id"`
	Title       string `json:"title"`
	Summary     string `json:"summary"`
	Body        string `json:"body"`
	ImageURL    string `json:"image_url"`
	MatchID     flexID `json:"match_id"`
	PublishedAt string `json:"published_at"`
}

type userItem struct {
	ID           flexID `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	AvatarURL    string `json:"avatar_url"`
	FavoriteTeam string `json:"favorite_team"`
}

type leagueItem struct {
	ID      flexID `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country"`
	Season  string `json:"season"`
	LogoURL string `json:"logo_url"`
}

type leaderItem struct {
	Player string `json:"player"`
	Team   string `json:"team"`
	Value  int    `json:"value"`
}

// flexID accepts identifiers sent either as JSON strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	text := strings.TrimSpace(string(data))
	if text == "" || text == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(text, `"`) {
		var value string
		if err := sonic.Unmarshal(data, &value); err != nil {
			return err
		}
		*f = flexID(strings.TrimSpace(value))
		return nil
	}
	if _, err := strconv.ParseFloat(text, 64); err != nil {
		return crerr.Newf("invalid id %s", text)
	}
	*f = flexID(text)
	return nil
}

func (c *Client) FetchFixtures(ctx context.Context) ([]fixture.Fixture, error) {
	var envelope fixturesEnvelope
	if err := c.doJSON(ctx, pathFixtures, nil, &envelope); err != nil {
		return nil, crerr.Wrap(err, "fetch fixtures")
	}

	out := make([]fixture.Fixture, 0, len(envelope.Data.Fixtures))
	for _, item := range envelope.Data.Fixtures {
		out = append(out, mapFixture(item))
	}
	return out, nil
}

func (c *Client) FetchResults(ctx context.Context) ([]fixture.Result, error) {
	var envelope resultsEnvelope
	if err := c.doJSON(ctx, pathResults, nil, &envelope); err != nil {
		return nil, crerr.Wrap(err, "fetch results")
	}

	out := make([]fixture.Result, 0, len(envelope.Data.Results))
	skipped := 0
	for _, item := range envelope.Data.Results {
		// Abandoned, postponed or still running matches must not reach the
		// standings.
		if status := strings.TrimSpace(item.Status); status != "" && !fixture.IsFinishedStatus(status) {
			skipped++
			continue
		}
		result := fixture.Result{Fixture: mapFixture(item)}
		if item.HomeScore != nil {
			result.HomeScore = *item.HomeScore
		}
		if item.AwayScore != nil {
			result.AwayScore = *item.AwayScore
		}
		if strings.TrimSpace(item.Status) == "" {
			result.Status = fixture.StatusFinished
		}
		out = append(out, result)
	}
	if skipped > 0 {
		c.logger.DebugContext(ctx, "skipped unfinished results", "count", skipped)
	}
	return out, nil
}

func (c *Client) FetchReports(ctx context.Context) ([]news.Report, error) {
	var envelope reportsEnvelope
	if err := c.doJSON(ctx, pathReports, nil, &envelope); err != nil {
		return nil, crerr.Wrap(err, "fetch reports")
	}

	out := make([]news.Report, 0, len(envelope.Data.Reports))
	for _, item := range envelope.Data.Reports {
		out = append(out, news.Report{
			ID:          string(item.ID),
			Title:       strings.TrimSpace(item.Title),
			Summary:     strings.TrimSpace(item.Summary),
			Body:        item.Body,
			ImageURL:    strings.TrimSpace(item.ImageURL),
			MatchID:     string(item.MatchID),
			PublishedAt: parseFeedDateTime(item.PublishedAt),
		})
	}
	return out, nil
}

func (c *Client) FetchAnnouncements(ctx context.Context) ([]news.Announcement, error) {
	var envelope announcementsEnvelope
	if err := c.doJSON(ctx, pathAnnouncements, nil, &envelope); err != nil {
		return nil, crerr.Wrap(err, "fetch announcements")
	}

	out := make([]news.Announcement, 0, len(envelope.Data.Announcements))
	for _, item := range envelope.Data.Announcements {
		out = append(out, news.Announcement{
			ID:          string(item.ID),
			Title:       strings.TrimSpace(item.Title),
			Summary:     strings.TrimSpace(item.Summary),
			Body:        item.Body,
			ImageURL:    strings.TrimSpace(item.ImageURL),
			PublishedAt: parseFeedDateTime(item.PublishedAt),
		})
	}
	return out, nil
}

func (c *Client) FetchUsers(ctx context.Context) ([]user.User, error) {
	var envelope usersEnvelope
	if err := c.doJSON(ctx, pathUsers, nil, &envelope); err != nil {
		return nil, crerr.Wrap(err, "fetch users")
	}

	out := make([]user.User, 0, len(envelope.Data.Users))
	for _, item := range envelope.Data.Users {
		out = append(out, user.User{
			ID:           string(item.ID),
			Name:         strings.TrimSpace(item.Name),
			Email:        strings.TrimSpace(item.Email),
			AvatarURL:    strings.TrimSpace(item.AvatarURL),
			FavoriteTeam: strings.TrimSpace(item.FavoriteTeam),
		})
	}
	return out, nil
}

func (c *Client) FetchLeagues(ctx context.Context) ([]league.League, error) {
	var envelope leaguesEnvelope
	if err := c.doJSON(ctx, pathLeagues, nil, &envelope); err != nil {
		return nil, crerr.Wrap(err, "fetch leagues")
	}

	out := make([]league.League, 0, len(envelope.Data.Leagues))
	for _, item := range envelope.Data.Leagues {
		mapped := league.League{
			ID:      string(item.ID),
			Name:    strings.TrimSpace(item.Name),
			Country: strings.TrimSpace(item.Country),
			Season:  strings.TrimSpace(item.Season),
			LogoURL: strings.TrimSpace(item.LogoURL),
		}
		if err := mapped.Validate(); err != nil {
			c.logger.WarnContext(ctx, "skip invalid league from feed", "league_id", mapped.ID, "error", err)
			continue
		}
		out = append(out, mapped)
	}
	return out, nil
}

func (c *Client) FetchLeaders(ctx context.Context) (leader.Board, error) {
	var envelope leadersEnvelope
	if err := c.doJSON(ctx, pathLeaders, nil, &envelope); err != nil {
		return nil, crerr.Wrap(err, "fetch leaders")
	}

	board := leader.NewBoard()
	for rawCategory, items := range envelope.Data.Leaders {
		category := leader.ParseCategory(rawCategory)
		if category == "" {
			continue
		}
		list := make([]leader.Leader, 0, len(items))
		for _, item := range items {
			list = append(list, leader.Leader{
				Player: strings.TrimSpace(item.Player),
				Team:   strings.TrimSpace(item.Team),
				Value:  item.Value,
			})
		}
		board[category] = list
	}
	return board, nil
}

func mapFixture(item fixtureItem) fixture.Fixture {
	kickoff := item.KickoffAt
	if strings.TrimSpace(kickoff) == "" {
		kickoff = item.Date
	}
	return fixture.Fixture{
		ID:          string(item.ID),
		Competition: strings.TrimSpace(item.Competition),
		HomeTeam:    strings.TrimSpace(item.HomeTeam),
		AwayTeam:    strings.TrimSpace(item.AwayTeam),
		LeagueID:    string(item.LeagueID),
		Venue:       strings.TrimSpace(item.Venue),
		KickoffAt:   parseFeedDateTime(kickoff),
		Status:      fixture.NormalizeStatus(item.Status),
	}
}

func parseFeedDateTime(raw string) time.Time {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}
	}

	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		parsed, err := time.Parse(layout, value)
		if err == nil {
			return parsed.UTC()
		}
	}
	return time.Time{}
}

package httpapi

import (
	"context"
	"sort"
	"time"

	"github.com/riskibarqy/matchday-sync/internal/domain/fixture"
	"github.com/riskibarqy/matchday-sync/internal/domain/leader"
	"github.com/riskibarqy/matchday-sync/internal/domain/league"
	"github.com/riskibarqy/matchday-sync/internal/domain/leaguestanding"
	"github.com/riskibarqy/matchday-sync/internal/domain/liveevent"
	"github.com/riskibarqy/matchday-sync/internal/domain/news"
	"github.com/riskibarqy/matchday-sync/internal/domain/snapshot"
	"github.com/riskibarqy/matchday-sync/internal/domain/user"
	"github.com/riskibarqy/matchday-sync/internal/usecase"
)

type snapshotDTO struct {
	Version       uint64                    `json:"version"`
	Fixtures      []fixtureDTO              `json:"fixtures"`
	Results       []resultDTO               `json:"results"`
	Reports       []reportDTO               `json:"reports"`
	Announcements []announcementDTO         `json:"announcements"`
	Users         []userDTO                 `json:"users"`
	Leagues       []leagueDTO               `json:"leagues"`
	Leaders       map[string][]leaderDTO    `json:"leaders"`
	LiveEvents    map[string]map[string]any `json:"liveEvents"`
	Loading       bool                      `json:"loading"`
	Error         string                    `json:"error,omitempty"`
	UpdatedAt     *time.Time                `json:"updatedAt,omitempty"`
}

type snapshotMetaDTO struct {
	Version   uint64     `json:"version"`
	Loading   bool       `json:"loading"`
	Error     string     `json:"error,omitempty"`
	LiveCount int        `json:"liveCount"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

type fixtureDTO struct {
	ID          string     `json:"id"`
	Competition string     `json:"competition,omitempty"`
	HomeTeam    string     `json:"homeTeam"`
	AwayTeam    string     `json:"awayTeam"`
	LeagueID    string     `json:"leagueId,omitempty"`
	Venue       string     `json:"venue,omitempty"`
	KickoffAt   *time.Time `json:"kickoffAt,omitempty"`
	Status      string     `json:"status"`
}

type resultDTO struct {
	fixtureDTO
	HomeScore int `json:"homeScore"`
	AwayScore int `json:"awayScore"`
}

type reportDTO struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Summary     string     `json:"summary,omitempty"`
	Body        string     `json:"body,omitempty"`
	ImageURL    string     `json:"imageUrl,omitempty"`
	MatchID     string     `json:"matchId,omitempty"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
}

type announcementDTO struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Summary     string     `json:"summary,omitempty"`
	Body        string     `json:"body,omitempty"`
	ImageURL    string     `json:"imageUrl,omitempty"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
}

type userDTO struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	AvatarURL    string `json:"avatarUrl,omitempty"`
	FavoriteTeam string `json:"favoriteTeam,omitempty"`
}

type leagueDTO struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country,omitempty"`
	Season  string `json:"season,omitempty"`
	LogoURL string `json:"logoUrl,omitempty"`
}

type leaderDTO struct {
	Rank   int    `json:"rank"`
	Player string `json:"player"`
	Team   string `json:"team"`
	Value  int    `json:"value"`
}

type standingRowDTO struct {
	Position       int    `json:"position"`
	Team           string `json:"team"`
	Played         int    `json:"played"`
	Won            int    `json:"won"`
	Draw           int    `json:"draw"`
	Lost           int    `json:"lost"`
	GoalsFor       int    `json:"goalsFor"`
	GoalsAgainst   int    `json:"goalsAgainst"`
	GoalDifference int    `json:"goalDifference"`
	Points         int    `json:"points"`
}

type leagueTableDTO struct {
	League string           `json:"league"`
	Rows   []standingRowDTO `json:"rows"`
}

type liveEventDTO struct {
	MatchID string         `json:"matchId"`
	Record  map[string]any `json:"record"`
}

type matchCentreEntryDTO struct {
	Fixture fixtureDTO     `json:"fixture"`
	IsLive  bool           `json:"isLive"`
	Live    map[string]any `json:"live,omitempty"`
}

type refreshAcceptedDTO struct {
	Accepted       bool   `json:"accepted"`
	CurrentVersion uint64 `json:"currentVersion"`
}

func snapshotToDTO(ctx context.Context, snap *snapshot.Snapshot) snapshotDTO {
	_, span := startSpan(ctx, "httpapi.snapshotToDTO")
	defer span.End()

	out := snapshotDTO{
		Version:       snap.Version,
		Fixtures:      make([]fixtureDTO, 0, len(snap.Fixtures)),
		Results:       make([]resultDTO, 0, len(snap.Results)),
		Reports:       make([]reportDTO, 0, len(snap.Reports)),
		Announcements: make([]announcementDTO, 0, len(snap.Announcements)),
		Users:         make([]userDTO, 0, len(snap.Users)),
		Leagues:       make([]leagueDTO, 0, len(snap.Leagues)),
		Leaders:       make(map[string][]leaderDTO, len(snap.Leaders)),
		LiveEvents:    liveEventsToDTO(snap.LiveEvents),
		Loading:       snap.Loading,
		Error:         snap.Error,
		UpdatedAt:     optionalTime(snap.UpdatedAt),
	}
	for _, item := range snap.Fixtures {
		out.Fixtures = append(out.Fixtures, fixtureToDTO(item))
	}
	for _, item := range snap.Results {
		out.Results = append(out.Results, resultToDTO(item))
	}
	for _, item := range snap.Reports {
		out.Reports = append(out.Reports, reportToDTO(item))
	}
	for _, item := range snap.Announcements {
		out.Announcements = append(out.Announcements, announcementToDTO(item))
	}
	for _, item := range snap.Users {
		out.Users = append(out.Users, userToDTO(item))
	}
	for _, item := range snap.Leagues {
		out.Leagues = append(out.Leagues, leagueToDTO(item))
	}
	for category, leaders := range snap.Leaders {
		out.Leaders[string(category)] = leadersToDTO(leaders)
	}
	return out
}

func snapshotToMetaDTO(snap *snapshot.Snapshot) snapshotMetaDTO {
	return snapshotMetaDTO{
		Version:   snap.Version,
		Loading:   snap.Loading,
		Error:     snap.Error,
		LiveCount: len(snap.LiveEvents),
		UpdatedAt: optionalTime(snap.UpdatedAt),
	}
}

func fixtureToDTO(item fixture.Fixture) fixtureDTO {
	return fixtureDTO{
		ID:          item.ID,
		Competition: item.Competition,
		HomeTeam:    item.HomeTeam,
		AwayTeam:    item.AwayTeam,
		LeagueID:    item.LeagueID,
		Venue:       item.Venue,
		KickoffAt:   optionalTime(item.KickoffAt),
		Status:      item.Status,
	}
}

func resultToDTO(item fixture.Result) resultDTO {
	return resultDTO{
		fixtureDTO: fixtureToDTO(item.Fixture),
		HomeScore:  item.HomeScore,
		AwayScore:  item.AwayScore,
	}
}

func reportToDTO(item news.Report) reportDTO {
	return reportDTO{
		ID:          item.ID,
		Title:       item.Title,
		Summary:     item.Summary,
		Body:        item.Body,
		ImageURL:    item.ImageURL,
		MatchID:     item.MatchID,
		PublishedAt: optionalTime(item.PublishedAt),
	}
}

func announcementToDTO(item news.Announcement) announcementDTO {
	return announcementDTO{
		ID:          item.ID,
		Title:       item.Title,
		Summary:     item.Summary,
		Body:        item.Body,
		ImageURL:    item.ImageURL,
		PublishedAt: optionalTime(item.PublishedAt),
	}
}

// userToDTO leaves out the email address.
func userToDTO(item user.User) userDTO {
	return userDTO{
		ID:           item.ID,
		Name:         item.Name,
		AvatarURL:    item.AvatarURL,
		FavoriteTeam: item.FavoriteTeam,
	}
}

func leagueToDTO(item league.League) leagueDTO {
	return leagueDTO{
		ID:      item.ID,
		Name:    item.Name,
		Country: item.Country,
		Season:  item.Season,
		LogoURL: item.LogoURL,
	}
}

func leadersToDTO(items []leader.Leader) []leaderDTO {
	out := make([]leaderDTO, 0, len(items))
	for i, item := range items {
		out = append(out, leaderDTO{
			Rank:   i + 1,
			Player: item.Player,
			Team:   item.Team,
			Value:  item.Value,
		})
	}
	return out
}

func standingsToDTO(rows []leaguestanding.Row) []standingRowDTO {
	out := make([]standingRowDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, standingRowDTO{
			Position:       row.Position,
			Team:           row.Team,
			Played:         row.Played,
			Won:            row.Won,
			Draw:           row.Draw,
			Lost:           row.Lost,
			GoalsFor:       row.GoalsFor,
			GoalsAgainst:   row.GoalsAgainst,
			GoalDifference: row.GoalDifference,
			Points:         row.Points,
		})
	}
	return out
}

// leagueTablesToDTO orders tables by league key so responses are stable.
func leagueTablesToDTO(tables map[string][]leaguestanding.Row) []leagueTableDTO {
	keys := make([]string, 0, len(tables))
	for key := range tables {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]leagueTableDTO, 0, len(keys))
	for _, key := range keys {
		out = append(out, leagueTableDTO{League: key, Rows: standingsToDTO(tables[key])})
	}
	return out
}

func liveEventsToDTO(events liveevent.Map) map[string]map[string]any {
	out := make(map[string]map[string]any, len(events))
	for matchID, record := range events {
		out[matchID] = map[string]any(record)
	}
	return out
}

func matchCentreToDTO(entries []usecase.MatchCentreEntry) []matchCentreEntryDTO {
	out := make([]matchCentreEntryDTO, 0, len(entries))
	for _, entry := range entries {
		out = append(out, matchCentreEntryDTO{
			Fixture: fixtureToDTO(entry.Fixture),
			IsLive:  entry.IsLive,
			Live:    map[string]any(entry.Live),
		})
	}
	return out
}

func optionalTime(value time.Time) *time.Time {
	if value.IsZero() {
		return nil
	}
	utc := value.UTC()
	return &utc
}

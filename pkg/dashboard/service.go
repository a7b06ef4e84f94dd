// Package dashboard assembles the friend cards, today's leaderboard and the
// recent activity feed from batched LeetCode GraphQL requests.
//
// Every view issues one batch per query kind through a Resolver, normally a
// *requestcache.Cache, so repeated views within the cache TTL cost nothing
// upstream. GraphQL-level errors are per-user data problems: the affected
// user is skipped or scored zero, never failing the whole view.
package dashboard

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/leetleague/leetleague/pkg/friends"
	"github.com/leetleague/leetleague/pkg/graphql"
	"github.com/leetleague/leetleague/pkg/requestcache"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// PageSize is the number of activity entries per feed page.
const PageSize = 10

// Resolver answers GraphQL requests, one document per request.
type Resolver interface {
	Resolve(ctx context.Context, req requestcache.Request) (json.RawMessage, error)
	ResolveBatch(ctx context.Context, reqs []requestcache.Request) ([]json.RawMessage, error)
}

// FriendCard is the profile summary of one friend.
type FriendCard struct {
	Username    string `json:"username"`
	RealName    string `json:"realName,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
	Ranking     int    `json:"ranking"`
	TotalSolved int    `json:"totalSolved"`
}

// LeaderboardEntry is one row of today's leaderboard.
type LeaderboardEntry struct {
	Username    string `json:"username"`
	SolvedToday int    `json:"solvedToday"`
	Avatar      string `json:"avatar,omitempty"`
}

// Activity is one accepted submission in the feed.
type Activity struct {
	ID           string    `json:"id"`
	SubmissionID string    `json:"submissionId"`
	Username     string    `json:"username"`
	ProblemID    string    `json:"problemId"`
	ProblemTitle string    `json:"problemTitle"`
	Difficulty   string    `json:"difficulty,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// FeedPage is one page of the activity feed.
type FeedPage struct {
	Items      []Activity `json:"items"`
	Page       int        `json:"page"`
	TotalPages int        `json:"totalPages"`
	Total      int        `json:"total"`
}

// Stats summarizes the dashboard.
type Stats struct {
	Friends     int `json:"friends"`
	ActiveToday int `json:"activeToday"`
	SolvedToday int `json:"solvedToday"`
	TotalSolved int `json:"totalSolved"`
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now for the "today" computations.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLogger sets the service logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// Service builds dashboard views for the tracked friends.
type Service struct {
	resolver Resolver
	store    friends.Store
	now      func() time.Time
	logger   zerolog.Logger
}

// NewService creates a dashboard service.
func NewService(resolver Resolver, store friends.Store, opts ...Option) *Service {
	s := &Service{
		resolver: resolver,
		store:    store,
		now:      time.Now,
		logger:   log.With().Str("component", "dashboard").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UserExists reports whether LeetCode knows username.
func (s *Service) UserExists(ctx context.Context, username string) (bool, error) {
	doc, err := s.resolver.Resolve(ctx, ProfileRequest(username))
	if err != nil {
		return false, err
	}
	var data profileData
	if ok := s.decode(username, doc, &data); !ok {
		return false, nil
	}
	return data.MatchedUser != nil, nil
}

// FriendCards returns a card per friend LeetCode knows, in list order.
func (s *Service) FriendCards(ctx context.Context) ([]FriendCard, error) {
	names, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	return s.friendCards(ctx, names)
}

func (s *Service) friendCards(ctx context.Context, names []string) ([]FriendCard, error) {
	cards := []FriendCard{}
	if len(names) == 0 {
		return cards, nil
	}

	reqs := make([]requestcache.Request, len(names))
	for i, name := range names {
		reqs[i] = ProfileRequest(name)
	}
	docs, err := s.resolver.ResolveBatch(ctx, reqs)
	if err != nil {
		return nil, fmt.Errorf("fetch profiles: %w", err)
	}

	for i, doc := range docs {
		var data profileData
		if !s.decode(names[i], doc, &data) || data.MatchedUser == nil {
			continue
		}
		u := data.MatchedUser
		cards = append(cards, FriendCard{
			Username:    u.Username,
			RealName:    u.Profile.RealName,
			Avatar:      u.Profile.UserAvatar,
			Ranking:     u.Profile.Ranking,
			TotalSolved: totalSolved(u.SubmitStatsGlobal.AcSubmissionNum),
		})
	}
	return cards, nil
}

// totalSolved prefers the "All" bucket, then the first bucket.
func totalSolved(counts []acCount) int {
	for _, c := range counts {
		if c.Difficulty == "All" {
			return c.Count
		}
	}
	if len(counts) > 0 {
		return counts[0].Count
	}
	return 0
}

// Leaderboard ranks friends by problems solved today (UTC), most first.
// Friends LeetCode does not know are listed only when they scored.
func (s *Service) Leaderboard(ctx context.Context) ([]LeaderboardEntry, error) {
	names, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	return s.leaderboard(ctx, names)
}

func (s *Service) leaderboard(ctx context.Context, names []string) ([]LeaderboardEntry, error) {
	entries := []LeaderboardEntry{}
	if len(names) == 0 {
		return entries, nil
	}

	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	todayKey := strconv.FormatInt(today.Unix(), 10)

	reqs := make([]requestcache.Request, len(names))
	for i, name := range names {
		reqs[i] = CalendarRequest(name, now.Year())
	}
	docs, err := s.resolver.ResolveBatch(ctx, reqs)
	if err != nil {
		return nil, fmt.Errorf("fetch calendars: %w", err)
	}

	cards, err := s.friendCards(ctx, names)
	if err != nil {
		return nil, err
	}
	avatars := make(map[string]string, len(cards))
	for _, c := range cards {
		avatars[c.Username] = c.Avatar
	}

	for i, doc := range docs {
		name := names[i]
		solved := s.solvedOn(name, doc, todayKey)
		avatar, known := avatars[name]
		if !known && solved == 0 {
			continue
		}
		entries = append(entries, LeaderboardEntry{Username: name, SolvedToday: solved, Avatar: avatar})
	}

	slices.SortStableFunc(entries, func(a, b LeaderboardEntry) int {
		if c := cmp.Compare(b.SolvedToday, a.SolvedToday); c != 0 {
			return c
		}
		return cmp.Compare(a.Username, b.Username)
	})
	return entries, nil
}

// solvedOn reads the submission count for dayKey from a calendar document.
func (s *Service) solvedOn(username string, doc json.RawMessage, dayKey string) int {
	var data calendarData
	if !s.decode(username, doc, &data) {
		return 0
	}
	if data.MatchedUser == nil || data.MatchedUser.UserCalendar == nil || data.MatchedUser.UserCalendar.SubmissionCalendar == "" {
		return 0
	}

	var calendar map[string]int
	if err := json.Unmarshal([]byte(data.MatchedUser.UserCalendar.SubmissionCalendar), &calendar); err != nil {
		s.logger.Warn().Err(err).Str("username", username).Msg("Malformed submission calendar")
		return 0
	}
	return calendar[dayKey]
}

// ActivityFeed returns page (1-based) of the friends' recent accepted
// submissions, newest first.
func (s *Service) ActivityFeed(ctx context.Context, page int) (FeedPage, error) {
	if page < 1 {
		page = 1
	}

	names, err := s.store.List(ctx)
	if err != nil {
		return FeedPage{}, fmt.Errorf("list friends: %w", err)
	}
	all, err := s.activity(ctx, names)
	if err != nil {
		return FeedPage{}, err
	}

	fp := FeedPage{
		Items:      []Activity{},
		Page:       page,
		Total:      len(all),
		TotalPages: (len(all) + PageSize - 1) / PageSize,
	}
	start := (page - 1) * PageSize
	if start < len(all) {
		fp.Items = all[start:min(start+PageSize, len(all))]
	}
	return fp, nil
}

func (s *Service) activity(ctx context.Context, names []string) ([]Activity, error) {
	all := []Activity{}
	if len(names) == 0 {
		return all, nil
	}

	reqs := make([]requestcache.Request, len(names))
	for i, name := range names {
		reqs[i] = RecentSubmissionsRequest(name)
	}
	docs, err := s.resolver.ResolveBatch(ctx, reqs)
	if err != nil {
		return nil, fmt.Errorf("fetch submissions: %w", err)
	}

	var slugs []string
	seen := make(map[string]bool)
	for i, doc := range docs {
		name := names[i]
		var data recentSubmissionsData
		if !s.decode(name, doc, &data) {
			continue
		}
		for _, sub := range data.RecentAcSubmissionList {
			sec, err := strconv.ParseInt(sub.Timestamp, 10, 64)
			if err != nil {
				s.logger.Warn().Str("username", name).Str("timestamp", sub.Timestamp).Msg("Skipping submission with bad timestamp")
				continue
			}
			all = append(all, Activity{
				ID:           name + "-" + sub.TitleSlug + "-" + sub.Timestamp,
				SubmissionID: sub.ID,
				Username:     name,
				ProblemID:    sub.TitleSlug,
				ProblemTitle: sub.Title,
				Timestamp:    time.Unix(sec, 0).UTC(),
			})
			if sub.TitleSlug != "" && !seen[sub.TitleSlug] {
				seen[sub.TitleSlug] = true
				slugs = append(slugs, sub.TitleSlug)
			}
		}
	}

	difficulties := s.difficulties(ctx, slugs)
	for i := range all {
		all[i].Difficulty = difficulties[all[i].ProblemID]
	}

	slices.SortStableFunc(all, func(a, b Activity) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	return all, nil
}

// difficulties looks up question difficulties; failures leave slugs unset.
func (s *Service) difficulties(ctx context.Context, slugs []string) map[string]string {
	out := make(map[string]string, len(slugs))
	if len(slugs) == 0 {
		return out
	}

	reqs := make([]requestcache.Request, len(slugs))
	for i, slug := range slugs {
		reqs[i] = DifficultyRequest(slug)
	}
	docs, err := s.resolver.ResolveBatch(ctx, reqs)
	if err != nil {
		s.logger.Warn().Err(err).Int("questions", len(slugs)).Msg("Failed to fetch difficulties")
		return out
	}

	for i, doc := range docs {
		var data difficultyData
		if !s.decode(slugs[i], doc, &data) || data.Question == nil {
			continue
		}
		out[slugs[i]] = data.Question.Difficulty
	}
	return out
}

// Stats returns headline numbers for the dashboard.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	names, err := s.store.List(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("list friends: %w", err)
	}

	board, err := s.leaderboard(ctx, names)
	if err != nil {
		return Stats{}, err
	}
	cards, err := s.friendCards(ctx, names)
	if err != nil {
		return Stats{}, err
	}

	st := Stats{Friends: len(names)}
	for _, e := range board {
		st.SolvedToday += e.SolvedToday
		if e.SolvedToday > 0 {
			st.ActiveToday++
		}
	}
	for _, c := range cards {
		st.TotalSolved += c.TotalSolved
	}
	return st, nil
}

// decode unwraps one GraphQL document into v. It reports false when the
// document carries GraphQL errors or cannot be decoded.
func (s *Service) decode(subject string, doc json.RawMessage, v any) bool {
	env, err := graphql.DecodeEnvelope(doc)
	if err != nil {
		s.logger.Warn().Err(err).Str("subject", subject).Msg("Undecodable GraphQL response")
		return false
	}
	if env.HasErrors() {
		ev := s.logger.Debug()
		if !env.UserNotFound() {
			ev = s.logger.Warn()
		}
		ev.Str("subject", subject).Str("error", env.Errors[0].Message).Msg("GraphQL error")
		return false
	}
	if err := env.DecodeData(v); err != nil {
		s.logger.Warn().Err(err).Str("subject", subject).Msg("Unexpected GraphQL data")
		return false
	}
	return true
}

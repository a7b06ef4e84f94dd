package dashboard

import "github.com/leetleague/leetleague/pkg/requestcache"

// GraphQL documents sent for every dashboard view.
const (
	profileQuery = `
query userPublicProfile($username: String!) {
  matchedUser(username: $username) {
    username
    profile {
      realName
      userAvatar
      ranking
    }
    submitStatsGlobal {
      acSubmissionNum {
        count
        difficulty
      }
    }
  }
}`

	calendarQuery = `
query userProfileCalendar($username: String!, $year: Int) {
  matchedUser(username: $username) {
    userCalendar(year: $year) {
      submissionCalendar
    }
  }
}`

	recentSubmissionsQuery = `
query recentAcSubmissions($username: String!, $limit: Int!) {
  recentAcSubmissionList(username: $username, limit: $limit) {
    id
    title
    titleSlug
    timestamp
  }
}`

	difficultyQuery = `
query getQuestionDifficulty($titleSlug: String!) {
  question(titleSlug: $titleSlug) {
    difficulty
  }
}`
)

// RecentSubmissionsLimit is how many accepted submissions are fetched per user.
const RecentSubmissionsLimit = 20

// ProfileRequest builds the userPublicProfile request for username.
func ProfileRequest(username string) requestcache.Request {
	return requestcache.Request{
		Query:     profileQuery,
		Variables: map[string]any{"username": username},
	}
}

// CalendarRequest builds the userProfileCalendar request for one year.
func CalendarRequest(username string, year int) requestcache.Request {
	return requestcache.Request{
		Query:     calendarQuery,
		Variables: map[string]any{"username": username, "year": year},
	}
}

// RecentSubmissionsRequest builds the recentAcSubmissions request.
func RecentSubmissionsRequest(username string) requestcache.Request {
	return requestcache.Request{
		Query:     recentSubmissionsQuery,
		Variables: map[string]any{"username": username, "limit": RecentSubmissionsLimit},
	}
}

// DifficultyRequest builds the getQuestionDifficulty request.
func DifficultyRequest(titleSlug string) requestcache.Request {
	return requestcache.Request{
		Query:     difficultyQuery,
		Variables: map[string]any{"titleSlug": titleSlug},
	}
}

type acCount struct {
	Difficulty string `json:"difficulty"`
	Count      int    `json:"count"`
}

type profileData struct {
	MatchedUser *struct {
		Username string `json:"username"`
		Profile  struct {
			RealName   string `json:"realName"`
			UserAvatar string `json:"userAvatar"`
			Ranking    int    `json:"ranking"`
		} `json:"profile"`
		SubmitStatsGlobal struct {
			AcSubmissionNum []acCount `json:"acSubmissionNum"`
		} `json:"submitStatsGlobal"`
	} `json:"matchedUser"`
}

type calendarData struct {
	MatchedUser *struct {
		UserCalendar *struct {
			SubmissionCalendar string `json:"submissionCalendar"`
		} `json:"userCalendar"`
	} `json:"matchedUser"`
}

type recentSubmissionsData struct {
	RecentAcSubmissionList []struct {
		ID        string `json:"id"`
		Title     string `json:"title"`
		TitleSlug string `json:"titleSlug"`
		Timestamp string `json:"timestamp"`
	} `json:"recentAcSubmissionList"`
}

type difficultyData struct {
	Question *struct {
		Difficulty string `json:"difficulty"`
	} `json:"question"`
}

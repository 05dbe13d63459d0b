// Package engagement holds the like/dislike state machine applied to an
// article's voter sets.
//
// A vote adds the user to the voter set matching its direction (a no-op when
// the user is already there) and removes the user from the opposite set. A
// repeated same-direction vote never withdraws the vote; only a vote in the
// other direction moves the user. Counters always equal the size of their set.
package engagement

import (
	"slices"

	"github.com/mindmeld-app/mindmeld/internal/model"
)

// Transition names the voter set a vote adds the user to and the set it
// removes the user from. Stores execute it as one atomic operation.
type Transition struct {
	AddTo      model.Direction
	RemoveFrom model.Direction
}

// Plan returns the set operations a vote in direction d performs.
func Plan(d model.Direction) Transition {
	return Transition{AddTo: d, RemoveFrom: d.Opposite()}
}

func (t Transition) Valid() bool {
	return t.AddTo.Valid() && t.RemoveFrom == t.AddTo.Opposite()
}

// Outcome reports which of the two set operations changed anything.
type Outcome struct {
	Added   bool
	Removed bool
}

func (o Outcome) Changed() bool {
	return o.Added || o.Removed
}

// Apply returns a copy of article with userID's vote in direction d applied.
// The input article and its slices are not modified.
func Apply(article model.Article, userID string, d model.Direction) (model.Article, Outcome) {
	if !d.Valid() || userID == "" {
		return article, Outcome{}
	}
	t := Plan(d)
	same := slices.Clone(voters(article, t.AddTo))
	opposite := slices.Clone(voters(article, t.RemoveFrom))

	var out Outcome
	if !slices.Contains(same, userID) {
		same = append(same, userID)
		out.Added = true
	}
	if i := slices.Index(opposite, userID); i >= 0 {
		opposite = slices.Delete(opposite, i, i+1)
		out.Removed = true
	}

	setVoters(&article, t.AddTo, same)
	setVoters(&article, t.RemoveFrom, opposite)
	article.Likes = len(article.LikedUserIDs)
	article.Dislikes = len(article.DislikedUserIDs)
	return article, out
}

// VoteOf reports the direction userID currently holds on article, or "".
func VoteOf(article model.Article, userID string) model.Direction {
	switch {
	case slices.Contains(article.LikedUserIDs, userID):
		return model.Like
	case slices.Contains(article.DislikedUserIDs, userID):
		return model.Dislike
	}
	return ""
}

func voters(a model.Article, d model.Direction) []string {
	if d == model.Like {
		return a.LikedUserIDs
	}
	return a.DislikedUserIDs
}

func setVoters(a *model.Article, d model.Direction, ids []string) {
	if ids == nil {
		ids = []string{}
	}
	if d == model.Like {
		a.LikedUserIDs = ids
		return
	}
	a.DislikedUserIDs = ids
}

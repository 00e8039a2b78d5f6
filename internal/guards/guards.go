// Package guards turns a viewer and a piece of content into a render decision.
package guards

import (
	"context"
	"net/url"
	"strings"

	"github.com/yungbote/coursehub-backend/internal/access"
	types "github.com/yungbote/coursehub-backend/internal/domain"
	"github.com/yungbote/coursehub-backend/internal/observability"
	"github.com/yungbote/coursehub-backend/internal/platform/ctxutil"
)

type Outcome string

const (
	OutcomeRender        Outcome = "render"
	OutcomeUpgrade       Outcome = "upgrade"
	OutcomeRedirectLogin Outcome = "redirect_login"
)

const DefaultLoginPath = "/login"

type Viewer struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"userId,omitempty"`
	Email         string `json:"email,omitempty"`
	IsPremium     bool   `json:"isPremium"`
}

type Decision struct {
	Outcome     Outcome                    `json:"outcome"`
	Reason      string                     `json:"reason"`
	RedirectURL string                     `json:"redirectUrl,omitempty"`
	Message     string                     `json:"message,omitempty"`
	Lesson      *access.LessonAccessStatus `json:"lesson,omitempty"`
	LessonIndex *int                       `json:"lessonIndex,omitempty"`
}

type PremiumResolver interface {
	IsUserPremium(ctx context.Context, userID string) bool
}

// ResolveViewer builds the viewer for a request. Premium comes from the resolver, never
// from the token claim; a nil resolver means not premium.
func ResolveViewer(ctx context.Context, sd *ctxutil.SessionData, premium PremiumResolver) Viewer {
	if sd == nil || strings.TrimSpace(sd.UserID) == "" {
		return Viewer{}
	}
	v := Viewer{Authenticated: true, UserID: sd.UserID, Email: sd.Email}
	if premium != nil {
		v.IsPremium = premium.IsUserPremium(ctx, sd.UserID)
	}
	return v
}

type Guard struct {
	loginPath string
}

func New(loginPath string) *Guard {
	loginPath = strings.TrimSpace(loginPath)
	if loginPath == "" {
		loginPath = DefaultLoginPath
	}
	return &Guard{loginPath: loginPath}
}

// LoginURL is the login page that returns to callbackURL after sign-in.
func (g *Guard) LoginURL(callbackURL string) string {
	if callbackURL == "" {
		return g.loginPath
	}
	sep := "?"
	if strings.Contains(g.loginPath, "?") {
		sep = "&"
	}
	return g.loginPath + sep + "callbackUrl=" + url.QueryEscape(callbackURL)
}

func (g *Guard) redirect(callbackURL string) Decision {
	return Decision{
		Outcome:     OutcomeRedirectLogin,
		Reason:      "unauthenticated",
		RedirectURL: g.LoginURL(callbackURL),
	}
}

// ContentGuard gates a whole course, product, workshop or repository. Only the free flag and
// the viewer's premium state matter.
func (g *Guard) ContentGuard(v Viewer, item *types.CatalogItem, callbackURL string) Decision {
	kind := "content"
	if item != nil && item.Kind != "" {
		kind = string(item.Kind)
	}
	d := g.content(v, item, callbackURL)
	observability.Current().IncAccessDecision(kind, string(d.Outcome))
	return d
}

func (g *Guard) content(v Viewer, item *types.CatalogItem, callbackURL string) Decision {
	if !v.Authenticated {
		return g.redirect(callbackURL)
	}
	switch {
	case item != nil && item.IsFree:
		return Decision{Outcome: OutcomeRender, Reason: "free_content"}
	case v.IsPremium:
		return Decision{Outcome: OutcomeRender, Reason: "premium"}
	default:
		return Decision{
			Outcome: OutcomeUpgrade,
			Reason:  "premium_required",
			Message: "This content is available with a premium subscription.",
		}
	}
}

// LessonGuard gates a single lesson by its position in the course.
func (g *Guard) LessonGuard(v Viewer, lessonIndex int, callbackURL string) Decision {
	d := g.lesson(v, lessonIndex, callbackURL)
	observability.Current().IncAccessDecision("lesson", string(d.Outcome))
	return d
}

func (g *Guard) lesson(v Viewer, lessonIndex int, callbackURL string) Decision {
	if !v.Authenticated {
		return g.redirect(callbackURL)
	}
	status := access.GetLessonAccessStatus(lessonIndex, v.IsPremium)
	idx := lessonIndex
	d := Decision{
		Lesson:      &status,
		LessonIndex: &idx,
		Message:     access.StatusMessage(status, lessonIndex, v.IsPremium),
	}
	switch {
	case !status.CanAccess:
		d.Outcome, d.Reason = OutcomeUpgrade, "premium_required"
	case v.IsPremium:
		d.Outcome, d.Reason = OutcomeRender, "premium"
	default:
		d.Outcome, d.Reason = OutcomeRender, "free_lesson"
	}
	return d
}

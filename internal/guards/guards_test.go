package guards

import (
	"context"
	"testing"

	types "github.com/yungbote/coursehub-backend/internal/domain"
	"github.com/yungbote/coursehub-backend/internal/platform/ctxutil"
)

type staticPremium bool

func (p staticPremium) IsUserPremium(ctx context.Context, userID string) bool { return bool(p) }

var (
	anon    = Viewer{}
	free    = Viewer{Authenticated: true, UserID: "u1"}
	premium = Viewer{Authenticated: true, UserID: "u2", IsPremium: true}
)

func TestContentGuard(t *testing.T) {
	g := New("/login")
	paid := &types.CatalogItem{Kind: types.KindWorkshop, Slug: "w"}
	freeItem := &types.CatalogItem{Kind: types.KindProduct, Slug: "p", IsFree: true}

	cases := []struct {
		name   string
		viewer Viewer
		item   *types.CatalogItem
		want   Outcome
	}{
		{"anon paid", anon, paid, OutcomeRedirectLogin},
		{"anon free", anon, freeItem, OutcomeRedirectLogin},
		{"free paid", free, paid, OutcomeUpgrade},
		{"free free", free, freeItem, OutcomeRender},
		{"premium paid", premium, paid, OutcomeRender},
	}
	for _, tc := range cases {
		if got := g.ContentGuard(tc.viewer, tc.item, "/workshops/w"); got.Outcome != tc.want {
			t.Fatalf("%s: want=%s got=%s", tc.name, tc.want, got.Outcome)
		}
	}
}

func TestLessonGuard(t *testing.T) {
	g := New("")
	cases := []struct {
		name   string
		viewer Viewer
		index  int
		want   Outcome
	}{
		{"anon first lesson", anon, 0, OutcomeRedirectLogin},
		{"free first", free, 0, OutcomeRender},
		{"free fourth", free, 3, OutcomeRender},
		{"free fifth", free, 4, OutcomeUpgrade},
		{"free unknown", free, -1, OutcomeUpgrade},
		{"premium tenth", premium, 9, OutcomeRender},
	}
	for _, tc := range cases {
		got := g.LessonGuard(tc.viewer, tc.index, "/courses/go/lessons/x")
		if got.Outcome != tc.want {
			t.Fatalf("%s: want=%s got=%s", tc.name, tc.want, got.Outcome)
		}
		if tc.viewer.Authenticated && got.Lesson == nil {
			t.Fatalf("%s: lesson status missing", tc.name)
		}
	}
	d := g.LessonGuard(free, 4, "")
	if !d.Lesson.RequiresUpgrade || d.Lesson.IsFree {
		t.Fatalf("locked lesson status: got %+v", *d.Lesson)
	}
}

func TestLoginRedirectCarriesCallback(t *testing.T) {
	g := New("/login")
	d := g.ContentGuard(anon, nil, "/courses/go?tab=lessons")
	want := "/login?callbackUrl=%2Fcourses%2Fgo%3Ftab%3Dlessons"
	if d.RedirectURL != want {
		t.Fatalf("redirect: want=%s got=%s", want, d.RedirectURL)
	}
	if got := New("/auth?provider=x").LoginURL("/a"); got != "/auth?provider=x&callbackUrl=%2Fa" {
		t.Fatalf("existing query: got=%s", got)
	}
	if got := g.LoginURL(""); got != "/login" {
		t.Fatalf("no callback: got=%s", got)
	}
}

func TestResolveViewer(t *testing.T) {
	ctx := context.Background()
	if v := ResolveViewer(ctx, nil, staticPremium(true)); v.Authenticated {
		t.Fatalf("nil session: want anonymous")
	}
	sd := &ctxutil.SessionData{UserID: "u1", IsPremium: true}
	if v := ResolveViewer(ctx, sd, staticPremium(false)); v.IsPremium {
		t.Fatalf("token claim must not grant premium")
	}
	if v := ResolveViewer(ctx, sd, nil); v.IsPremium || !v.Authenticated {
		t.Fatalf("nil resolver: got %+v", v)
	}
	if v := ResolveViewer(ctx, sd, staticPremium(true)); !v.IsPremium {
		t.Fatalf("resolver premium: want premium")
	}
}

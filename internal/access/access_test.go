package access

import "testing"

func TestCanAccessLesson(t *testing.T) {
	cases := []struct {
		index   int
		premium bool
		want    bool
	}{
		{0, false, true},
		{3, false, true},
		{4, false, false},
		{50, false, false},
		{-1, false, false},
		{0, true, true},
		{4, true, true},
		{-1, true, true},
	}
	for _, tc := range cases {
		if got := CanAccessLesson(tc.index, tc.premium); got != tc.want {
			t.Fatalf("CanAccessLesson(%d,%v): want=%v got=%v", tc.index, tc.premium, tc.want, got)
		}
	}
}

func TestPremiumOpensEverything(t *testing.T) {
	for i := -5; i < 200; i++ {
		if !CanAccessLesson(i, true) {
			t.Fatalf("premium denied at index %d", i)
		}
	}
}

func TestGetLessonAccessStatus(t *testing.T) {
	st := GetLessonAccessStatus(5, false)
	if st.CanAccess || st.IsFree || !st.RequiresUpgrade {
		t.Fatalf("locked lesson: unexpected status %+v", st)
	}
	st = GetLessonAccessStatus(2, false)
	if !st.CanAccess || !st.IsFree || st.RequiresUpgrade {
		t.Fatalf("free lesson: unexpected status %+v", st)
	}
	st = GetLessonAccessStatus(5, true)
	if !st.CanAccess || st.IsFree || st.RequiresUpgrade {
		t.Fatalf("premium lesson: unexpected status %+v", st)
	}
	// requiresUpgrade implies !canAccess and !premium
	for i := -2; i < 10; i++ {
		for _, p := range []bool{false, true} {
			s := GetLessonAccessStatus(i, p)
			if s.RequiresUpgrade && (s.CanAccess || p) {
				t.Fatalf("index=%d premium=%v: inconsistent %+v", i, p, s)
			}
		}
	}
}

func TestStatusMessage(t *testing.T) {
	premium := StatusMessage(GetLessonAccessStatus(9, true), 9, true)
	free := StatusMessage(GetLessonAccessStatus(1, false), 1, false)
	locked := StatusMessage(GetLessonAccessStatus(9, false), 9, false)
	if premium == free || free == locked || premium == locked {
		t.Fatalf("messages must differ: %q %q %q", premium, free, locked)
	}
}

func TestLessonIndex(t *testing.T) {
	ids := []string{"a", "b", "c"}
	if got := LessonIndex("c", ids); got != 2 {
		t.Fatalf("LessonIndex: want=2 got=%d", got)
	}
	if got := LessonIndex("z", ids); got != -1 {
		t.Fatalf("LessonIndex (missing): want=-1 got=%d", got)
	}
	if CanAccessLesson(LessonIndex("z", ids), false) {
		t.Fatalf("unknown lesson must not be free")
	}
}

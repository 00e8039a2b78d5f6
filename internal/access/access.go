// Package access holds the freemium lesson gating rules. Everything here is pure.
package access

// FreeLessonLimit is how many leading lessons of a course are open to the free tier.
const FreeLessonLimit = 4

type LessonAccessStatus struct {
	CanAccess       bool `json:"canAccess"`
	IsFree          bool `json:"isFree"`
	RequiresUpgrade bool `json:"requiresUpgrade"`
}

// IsFreeLesson reports whether the zero-based position falls in the free prefix. Unknown
// positions (negative) are never free.
func IsFreeLesson(index int) bool {
	return index >= 0 && index < FreeLessonLimit
}

func CanAccessLesson(index int, isPremium bool) bool {
	if isPremium {
		return true
	}
	return IsFreeLesson(index)
}

func GetLessonAccessStatus(index int, isPremium bool) LessonAccessStatus {
	can := CanAccessLesson(index, isPremium)
	return LessonAccessStatus{
		CanAccess:       can,
		IsFree:          IsFreeLesson(index),
		RequiresUpgrade: !can && !isPremium,
	}
}

func StatusMessage(status LessonAccessStatus, index int, isPremium bool) string {
	switch {
	case isPremium:
		return "Premium access: all lessons are available."
	case status.CanAccess:
		return "Free lesson: included in the first 4 lessons of every course."
	default:
		return "Upgrade to premium to unlock this lesson."
	}
}

// LessonIndex returns the position of lessonID in orderedIDs, or -1.
func LessonIndex(lessonID string, orderedIDs []string) int {
	for i, id := range orderedIDs {
		if id == lessonID {
			return i
		}
	}
	return -1
}

package watch

import "time"

// Revision is one historical edit of a tracked article.
// Everything except Seen is fixed once the revision is merged.
type Revision struct {
	User      string    `json:"user" yaml:"user"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Size      int64     `json:"size" yaml:"size"`
	Comment   string    `json:"comment" yaml:"comment"`
	Seen      bool      `json:"seen" yaml:"seen"`
}

// SameAs reports whether r and other describe the same edit.
// Identity is (User, Timestamp) at full precision; Size and Comment are ignored.
func (r *Revision) SameAs(other *Revision) bool {
	return SameIdentity(r, other)
}

// SameIdentity compares two revisions by editor and edit time.
func SameIdentity(a, b *Revision) bool {
	return a.User == b.User && a.Timestamp.Equal(b.Timestamp)
}

// identity is a map key equivalent to SameIdentity. UTC() normalises the
// location and strips the monotonic reading so Equal instants collide.
type identity struct {
	user string
	ts   time.Time
}

func identityOf(user string, ts time.Time) identity {
	return identity{user: user, ts: ts.UTC()}
}

func (r *Revision) identity() identity {
	return identityOf(r.User, r.Timestamp)
}

package domain

import "time"

// Profile is display data owned by one user. Seeded empty at native
// registration and from provider claims on OAuth first login.
type Profile struct {
	UserID     string
	GivenName  string
	FamilyName string
	NickName   string
	PictureURL string
	Locale     string
	UpdatedAt  time.Time
}

// Update carries profile fields the owner may change; nil means unchanged.
type Update struct {
	GivenName  *string
	FamilyName *string
	NickName   *string
	PictureURL *string
	Locale     *string
}

// Apply merges upd onto p field by field. Reports whether anything changed.
func (p *Profile) Apply(upd Update, now time.Time) bool {
	changed := false
	set := func(dst *string, src *string) {
		if src != nil && *src != *dst {
			*dst = *src
			changed = true
		}
	}
	set(&p.GivenName, upd.GivenName)
	set(&p.FamilyName, upd.FamilyName)
	set(&p.NickName, upd.NickName)
	set(&p.PictureURL, upd.PictureURL)
	set(&p.Locale, upd.Locale)
	if changed {
		p.UpdatedAt = now
	}
	return changed
}

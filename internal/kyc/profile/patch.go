package profile

import "time"

// Patch is a targeted partial update. Only non-nil fields land on the
// profile; merging is last-write-wins at field granularity, never a
// whole-document replace. Workflow steps touch disjoint fields, which is what
// makes concurrent submissions for one tax identifier safe.
type Patch struct {
	SessionToken *string

	FullName    *string
	Email       *string
	Phone       *string
	DateOfBirth *string

	Address     *Address
	BankAccount *BankAccount
	Nominees    *[]Nominee

	WatchlistHits  *[]WatchlistHit
	ReviewRequired *bool

	SelfieURL     *string
	SignatureURL  *string
	ChequeURL     *string
	VaultProofURL *string
}

// Apply merges the patch onto the profile and stamps UpdatedAt.
func (patch Patch) Apply(p *CustomerProfile, now time.Time) {
	if patch.SessionToken != nil {
		p.SessionToken = *patch.SessionToken
	}
	if patch.FullName != nil {
		p.FullName = *patch.FullName
	}
	if patch.Email != nil {
		p.Email = *patch.Email
	}
	if patch.Phone != nil {
		p.Phone = *patch.Phone
	}
	if patch.DateOfBirth != nil {
		p.DateOfBirth = *patch.DateOfBirth
	}
	if patch.Address != nil {
		p.Address = *patch.Address
	}
	if patch.BankAccount != nil {
		p.BankAccount = *patch.BankAccount
	}
	if patch.Nominees != nil {
		p.Nominees = *patch.Nominees
	}
	if patch.WatchlistHits != nil {
		p.WatchlistHits = *patch.WatchlistHits
	}
	if patch.ReviewRequired != nil {
		p.ReviewRequired = *patch.ReviewRequired
	}
	if patch.SelfieURL != nil {
		p.SelfieURL = *patch.SelfieURL
	}
	if patch.SignatureURL != nil {
		p.SignatureURL = *patch.SignatureURL
	}
	if patch.ChequeURL != nil {
		p.ChequeURL = *patch.ChequeURL
	}
	if patch.VaultProofURL != nil {
		p.VaultProofURL = *patch.VaultProofURL
	}
	p.UpdatedAt = now
}

func ptr[T any](v T) *T {
	return &v
}

// Package security contains token minting for verification links and the
// booking flow session
package security

import (
	"errors"
	"time"

	"github.com/bizbo-corp/trade-depot-installation-scheduling-sub001/internal/model"
	"github.com/bizbo-corp/trade-depot-installation-scheduling-sub001/pkg/util"
)

const (
	tokenSize = 32
	idSize    = 16
)

type VerificationRecordOpts struct {
	URL              string
	Report           string
	Screenshot       string
	Email            string
	FirstName        string
	HubspotContactID *string
	CreatedAt        time.Time
	TTL              time.Duration
}

// MakeVerificationRecord mints a fresh id and verification token and fixes
// the token expiry at CreatedAt + TTL. The record is not persisted
func MakeVerificationRecord(o *VerificationRecordOpts) (*model.VerificationRecord, error) {
	if o == nil {
		return nil, errors.New("no record options provided")
	}

	if o.URL == "" {
		return nil, errors.New("no url provided")
	}

	if o.Email == "" {
		return nil, errors.New("no email provided")
	}

	if o.TTL <= 0 {
		return nil, errors.New("no token ttl provided")
	}

	if o.CreatedAt.IsZero() {
		return nil, errors.New("no creation time provided")
	}

	token, err := util.GenerateToken(tokenSize)
	if err != nil {
		return nil, err
	}

	id, err := util.NewID(idSize)
	if err != nil {
		return nil, err
	}

	return &model.VerificationRecord{
		ID:                id,
		URL:               o.URL,
		Report:            o.Report,
		Screenshot:        o.Screenshot,
		Email:             o.Email,
		FirstName:         o.FirstName,
		VerificationToken: token,
		TokenExpiresAt:    o.CreatedAt.Add(o.TTL),
		EmailVerified:     false,
		HubspotContactID:  o.HubspotContactID,
		CreatedAt:         o.CreatedAt,
	}, nil
}

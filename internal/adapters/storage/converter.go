package storage

import (
	"fmt"

	"github.com/lcalzada-xor/connd/internal/core/domain"
)

func (a *SQLiteAdapter) toModel(rec domain.ServiceRecord) (ServiceModel, error) {
	passphrase := rec.Passphrase
	if a.sealer != nil && passphrase != "" {
		sealed, err := a.sealer.Seal(passphrase)
		if err != nil {
			return ServiceModel{}, fmt.Errorf("seal passphrase: %w", err)
		}
		passphrase = sealed
	}

	return ServiceModel{
		Identifier: rec.Identifier,
		Type:       rec.Type.String(),
		Mode:       rec.Mode.String(),
		Security:   rec.Security.String(),
		Favorite:   rec.Favorite,
		Order:      rec.Order,
		Name:       rec.Name,
		Passphrase: passphrase,
	}, nil
}

func (a *SQLiteAdapter) toRecord(m ServiceModel) (domain.ServiceRecord, error) {
	passphrase := m.Passphrase
	if passphrase != "" && IsSealed(passphrase) {
		if a.sealer == nil {
			return domain.ServiceRecord{}, fmt.Errorf("%w: sealed passphrase without key", domain.ErrPermissionDenied)
		}
		opened, err := a.sealer.Open(passphrase)
		if err != nil {
			return domain.ServiceRecord{}, fmt.Errorf("open passphrase: %w", err)
		}
		passphrase = opened
	}

	return domain.ServiceRecord{
		Identifier: m.Identifier,
		Type:       domain.ParseServiceType(m.Type),
		Mode:       domain.ParseMode(m.Mode),
		Security:   domain.ParseSecurity(m.Security),
		Favorite:   m.Favorite,
		Order:      m.Order,
		Name:       m.Name,
		Passphrase: passphrase,
	}, nil
}

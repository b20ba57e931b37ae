package service

import (
	"context"
	"errors"
	"strings"

	"gomonate/internal/model"
	"gomonate/internal/repository"

	"gorm.io/gorm"
)

// resolveCode finds the code record for a scanned or typed input: an exact
// code_id match first, then the upper-cased input as a short code.
func resolveCode(ctx context.Context, tx *gorm.DB, codes *repository.CodeRepository, input string) (*model.RedemptionCode, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrInvalidCode
	}

	code, err := codes.GetByCodeID(ctx, tx, input)
	if err == nil {
		return code, code.Validate()
	}
	if !errors.Is(err, repository.ErrCodeNotFound) {
		return nil, err
	}

	code, err = codes.GetByShortCode(ctx, tx, strings.ToUpper(input))
	if err != nil {
		if errors.Is(err, repository.ErrCodeNotFound) {
			return nil, ErrInvalidCode
		}
		return nil, err
	}
	return code, code.Validate()
}

// Package dbctx carries a request context together with the transaction a progress write
// body runs in.
package dbctx

import (
	"context"

	"gorm.io/gorm"
)

type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

package engine

import (
	"context"

	"github.com/yuno-bot/yuno/models"
)

// Interface for a type that can handle sending notifications
type Notifier interface {
	SendModAction(ctx context.Context, act *models.ModAction) error
}

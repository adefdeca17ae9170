package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/unapproachable/fairgame-fork/internal/app"
)

type ctxKey struct{}

// SetApp stores the Application in the command's context. A nil a clears it.
func SetApp(cmd *cobra.Command, a *app.Application) {
	if cmd == nil {
		return
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, ctxKey{}, a))
}

// GetAppFromCmd retrieves the Application stored by SetApp.
func GetAppFromCmd(cmd *cobra.Command) *app.Application {
	if cmd == nil || cmd.Context() == nil {
		return nil
	}
	a, _ := cmd.Context().Value(ctxKey{}).(*app.Application)
	return a
}

package harvest

import (
	"context"
	"log/slog"
	"strings"

	"chatvault/pkg/chat"
	"chatvault/pkg/domain"
)

// ResolveTargets turns the caller-supplied chat identifiers into resolved
// harvest targets. An empty list, or a list whose first entry is blank,
// selects every dialog visible to the session. Identifiers that fail to
// resolve are logged and skipped rather than failing the whole task.
func ResolveTargets(ctx context.Context, client chat.Client, raws []string) ([]domain.HarvestTarget, error) {
	if wantsAllDialogs(raws) {
		dialogs, err := client.Dialogs(ctx)
		if err != nil {
			return nil, err
		}
		targets := make([]domain.HarvestTarget, 0, len(dialogs))
		for _, d := range dialogs {
			targets = append(targets, dialogTarget("", d))
		}
		return targets, nil
	}

	targets := make([]domain.HarvestTarget, 0, len(raws))
	for _, raw := range raws {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		ref := domain.ParseChatRef(raw)
		info, err := client.ChatInfo(ctx, ref)
		if err != nil {
			slog.Warn("skipping unresolvable chat", "chat", raw, "error", err)
			continue
		}
		targets = append(targets, dialogTarget(raw, info))
	}
	return targets, nil
}

func wantsAllDialogs(raws []string) bool {
	if len(raws) == 0 {
		return true
	}
	return strings.TrimSpace(raws[0]) == ""
}

func dialogTarget(raw string, d chat.Dialog) domain.HarvestTarget {
	return domain.HarvestTarget{
		Raw:         raw,
		ChatID:      d.ChatID,
		DisplayName: d.Title,
		Username:    d.Username,
	}
}

package billing

import (
	"context"

	"github.com/ManuelReschke/comanda/app/models"
)

func (s *Service) recordWebhook(ctx context.Context, meta EventMeta, status, detail string, payload []byte) {
	s.effects.Run(ctx, "webhook_log", func(ctx context.Context) error {
		return s.repo.CreateWebhookLog(ctx, &models.WebhookLog{
			Source:    webhookSource,
			EventID:   meta.ID,
			EventType: meta.Type,
			Status:    status,
			Error:     detail,
			Payload:   string(payload),
		})
	})
}

func (s *Service) count(ctx context.Context, eventType, outcome string) {
	if s.counter == nil {
		return
	}
	s.effects.Run(ctx, "webhook_counter", func(ctx context.Context) error {
		return s.counter.Incr(ctx, eventType, outcome)
	})
}

func (s *Service) archivePayload(ctx context.Context, meta EventMeta, payload []byte) {
	if s.archive == nil {
		return
	}
	s.effects.Run(ctx, "payload_archive", func(ctx context.Context) error {
		return s.archive.Store(ctx, meta.ID, payload, s.now())
	})
}

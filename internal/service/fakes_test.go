package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/relaykit/smsrelay/internal/domain"
	"github.com/relaykit/smsrelay/internal/driver"
	"github.com/relaykit/smsrelay/internal/repository"
)

type fakeDriver struct {
	sendFn func(ctx context.Context, message domain.OutboundMessage) (*driver.DeliveryResult, error)
	calls  int
}

func (d *fakeDriver) Send(ctx context.Context, message domain.OutboundMessage) (*driver.DeliveryResult, error) {
	d.calls++
	if d.sendFn != nil {
		return d.sendFn(ctx, message)
	}
	return &driver.DeliveryResult{}, nil
}

// fakeMessageRepo mimics the persistence semantics the real repository gets
// from unique indexes and the cascading foreign key: one recipient row per
// (type, value), one association per (message, recipient), and associations
// following recipient identifier rewrites. WithinTransaction snapshots state
// and restores it when fn fails, mirroring a rollback.
type fakeMessageRepo struct {
	mu sync.Mutex

	messages   map[string]domain.Message
	recipients map[string]domain.Recipient
	assocs     map[string]domain.MessageRecipient

	promoteAffected *int64 // override for the reported row count
	promoteCalls    int
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{
		messages:   make(map[string]domain.Message),
		recipients: make(map[string]domain.Recipient),
		assocs:     make(map[string]domain.MessageRecipient),
	}
}

func assocKey(messageID, recipientID string) string {
	return messageID + "\x00" + recipientID
}

func pairKey(recipientType domain.RecipientType, value string) string {
	return string(recipientType) + "\x00" + value
}

func (f *fakeMessageRepo) snapshot() (map[string]domain.Message, map[string]domain.Recipient, map[string]domain.MessageRecipient) {
	messages := make(map[string]domain.Message, len(f.messages))
	for k, v := range f.messages {
		messages[k] = v
	}
	recipients := make(map[string]domain.Recipient, len(f.recipients))
	for k, v := range f.recipients {
		recipients[k] = v
	}
	assocs := make(map[string]domain.MessageRecipient, len(f.assocs))
	for k, v := range f.assocs {
		assocs[k] = v
	}
	return messages, recipients, assocs
}

func (f *fakeMessageRepo) WithinTransaction(ctx context.Context, fn func(repo repository.MessageRepository) error) error {
	f.mu.Lock()
	messages, recipients, assocs := f.snapshot()
	f.mu.Unlock()

	if err := fn(f); err != nil {
		f.mu.Lock()
		f.messages, f.recipients, f.assocs = messages, recipients, assocs
		f.mu.Unlock()
		return err
	}
	return nil
}

func (f *fakeMessageRepo) CreateMessage(_ context.Context, message *domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.messages[message.ID]; ok {
		return fmt.Errorf("duplicate key value violates unique constraint messages_pkey")
	}
	f.messages[message.ID] = *message
	return nil
}

func (f *fakeMessageRepo) LockMessage(_ context.Context, id string) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	message, ok := f.messages[id]
	if !ok {
		return nil, fmt.Errorf("%w: message %q", domain.ErrNotFound, id)
	}
	return &message, nil
}

func (f *fakeMessageRepo) GetMessageByID(_ context.Context, id string) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored, ok := f.messages[id]
	if !ok {
		return nil, fmt.Errorf("%w: message %q", domain.ErrNotFound, id)
	}

	message := stored
	message.Recipients = nil
	for _, assoc := range f.assocs {
		if assoc.MessageID != id {
			continue
		}
		recipient := f.recipients[assoc.RecipientID]
		assoc.Recipient = &recipient
		message.Recipients = append(message.Recipients, assoc)
	}
	sort.Slice(message.Recipients, func(i, j int) bool {
		return message.Recipients[i].Recipient.Value < message.Recipients[j].Recipient.Value
	})

	return &message, nil
}

func (f *fakeMessageRepo) UpsertRecipients(_ context.Context, recipients []domain.Recipient) ([]domain.Recipient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	byPair := make(map[string]domain.Recipient, len(f.recipients))
	for _, existing := range f.recipients {
		byPair[pairKey(existing.Type, existing.Value)] = existing
	}

	resolved := make([]domain.Recipient, 0, len(recipients))
	for _, candidate := range recipients {
		if existing, ok := byPair[pairKey(candidate.Type, candidate.Value)]; ok {
			resolved = append(resolved, existing)
			continue
		}
		f.recipients[candidate.ID] = candidate
		byPair[pairKey(candidate.Type, candidate.Value)] = candidate
		resolved = append(resolved, candidate)
	}

	return resolved, nil
}

func (f *fakeMessageRepo) CreateAssociations(_ context.Context, associations []domain.MessageRecipient) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, assoc := range associations {
		key := assocKey(assoc.MessageID, assoc.RecipientID)
		if _, ok := f.assocs[key]; ok {
			return fmt.Errorf("duplicate key value violates unique constraint message_recipients_pkey")
		}
		assoc.Recipient = nil
		f.assocs[key] = assoc
	}
	return nil
}

func (f *fakeMessageRepo) ListRecipientsByMessage(_ context.Context, messageID string) ([]domain.Recipient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var recipients []domain.Recipient
	for _, assoc := range f.assocs {
		if assoc.MessageID != messageID {
			continue
		}
		recipients = append(recipients, f.recipients[assoc.RecipientID])
	}
	sort.Slice(recipients, func(i, j int) bool { return recipients[i].Value < recipients[j].Value })

	return recipients, nil
}

func (f *fakeMessageRepo) PromoteRecipients(_ context.Context, promotions []repository.Promotion) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.promoteCalls++

	var affected int64
	for _, promotion := range promotions {
		recipient, ok := f.recipients[promotion.CurrentID]
		if !ok {
			continue
		}
		affected++

		delete(f.recipients, promotion.CurrentID)
		recipient.ID = promotion.NewID
		f.recipients[promotion.NewID] = recipient

		// Mirror the ON UPDATE CASCADE foreign key.
		for key, assoc := range f.assocs {
			if assoc.RecipientID != promotion.CurrentID {
				continue
			}
			delete(f.assocs, key)
			assoc.RecipientID = promotion.NewID
			f.assocs[assocKey(assoc.MessageID, assoc.RecipientID)] = assoc
		}
	}

	if f.promoteAffected != nil {
		return *f.promoteAffected, nil
	}
	return affected, nil
}

func (f *fakeMessageRepo) UpsertAssociationStatus(_ context.Context, associations []domain.MessageRecipient) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, update := range associations {
		key := assocKey(update.MessageID, update.RecipientID)
		if existing, ok := f.assocs[key]; ok {
			existing.DeliverySent = update.DeliverySent
			existing.DeliveryStatus = update.DeliveryStatus
			f.assocs[key] = existing
			continue
		}
		update.Recipient = nil
		f.assocs[key] = update
	}
	return nil
}

func (f *fakeMessageRepo) recipientCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.recipients)
}

func (f *fakeMessageRepo) assocCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.assocs)
}

// Package lottery runs the selection process that moves entrants from an
// event's waiting list to its invited list and manages their responses.
package lottery

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	eventstore "github.com/atlasevents/backend/internal/app/store/events"
	invitestore "github.com/atlasevents/backend/internal/app/store/invites"
	notifstore "github.com/atlasevents/backend/internal/app/store/notifications"
	"github.com/atlasevents/backend/internal/app/system/normalize"
	"github.com/atlasevents/backend/internal/domain/models"
	"go.uber.org/zap"
)

var (
	ErrEventNotFound  = errors.New("event not found")
	ErrInviteNotFound = errors.New("invite not found")
	ErrInviteExpired  = errors.New("invite expired")
	ErrInviteClosed   = errors.New("invite already responded to")
	ErrNoCandidates   = errors.New("no eligible entrants on the waiting list")
)

// DefaultInviteTTL is how long a winner has to respond before the invite
// expires.
const DefaultInviteTTL = 24 * time.Hour

// Service draws lottery winners and applies their responses.
type Service struct {
	events  *eventstore.Store
	invites *invitestore.Store
	notifs  *notifstore.Store
	log     *zap.Logger
	ttl     time.Duration
}

func New(events *eventstore.Store, invites *invitestore.Store, notifs *notifstore.Store, ttl time.Duration, log *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultInviteTTL
	}
	return &Service{
		events:  events,
		invites: invites,
		notifs:  notifs,
		log:     log,
		ttl:     ttl,
	}
}

// Draw samples up to count winners from the event's waiting list, issues each
// a pending invite with the service's TTL, moves them onto the invited list,
// and notifies them. Entrants already invited or declined are not eligible.
// A count larger than the eligible pool selects the whole pool.
//
// Winners whose invite write failed are left on the waiting list; the
// returned slice holds only the entrants actually moved.
func (s *Service) Draw(ctx context.Context, eventID string, count int) ([]models.Entrant, error) {
	ev, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, ErrEventNotFound
	}

	pool := make([]models.Entrant, 0, len(ev.Waitlist))
	for _, en := range ev.Waitlist {
		if ev.IsInvited(en.Email) || ev.HasDeclined(en.Email) {
			continue
		}
		pool = append(pool, en)
	}
	if len(pool) == 0 {
		return nil, ErrNoCandidates
	}
	if count <= 0 || count > len(pool) {
		count = len(pool)
	}

	rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	drawn := pool[:count]

	expiration := time.Now().Add(s.ttl).UnixMilli()
	invs := make([]models.Invite, len(drawn))
	for i, en := range drawn {
		invs[i] = models.NewInvite(ev.ID, en.Email, ev.Name, ev.OrganizerEmail, expiration)
	}
	results := s.invites.CreateMany(ctx, invs)

	winners := make([]models.Entrant, 0, len(drawn))
	for i, res := range results {
		if res.Err != nil {
			s.log.Warn("invite creation failed, entrant stays on waiting list",
				zap.String("event_id", ev.ID),
				zap.String("recipient", drawn[i].Email),
				zap.Error(res.Err))
			continue
		}
		winners = append(winners, drawn[i])
	}
	if len(winners) == 0 {
		return nil, errors.New("no invites could be created")
	}

	if err := s.events.MoveToInvited(ctx, ev.ID, winners); err != nil {
		return nil, err
	}

	emails := make([]string, len(winners))
	for i, w := range winners {
		emails[i] = w.Email
	}
	s.notifs.SendToUsers(ctx, emails, models.Notification{
		Title: "Lottery Results",
		Message: fmt.Sprintf("Congratulations! You have been selected from the waitlist for %s. "+
			"Please respond to your invitation within %s.", ev.Name, responseWindow(s.ttl)),
		EventID:       ev.ID,
		EventName:     ev.Name,
		FromOrganizer: ev.OrganizerEmail,
		GroupType:     models.GroupInvited,
	})

	s.log.Info("lottery drawn",
		zap.String("event_id", ev.ID),
		zap.Int("winners", len(winners)),
		zap.Int("pool", len(pool)))
	return winners, nil
}

// responseWindow renders the invite TTL for user-facing copy.
func responseWindow(ttl time.Duration) string {
	if ttl > 0 && ttl%time.Hour == 0 {
		h := int(ttl / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	}
	return ttl.String()
}

// Respond applies a winner's answer to their invite. Accepting keeps the
// entrant on the invited list; declining moves them to the declined list.
// Responding to an invite past its expiration flags it expired and fails.
func (s *Service) Respond(ctx context.Context, inviteID string, accept bool) (*models.Invite, error) {
	inv, err := s.invites.GetByID(ctx, inviteID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, ErrInviteNotFound
	}
	if inv.Status != models.InviteStatusPending {
		return nil, ErrInviteClosed
	}
	if inv.Expired(time.Now()) {
		if _, err := s.invites.UpdateStatus(ctx, inv.ID, models.InviteStatusExpired); err != nil {
			s.log.Warn("lazy invite expiry failed",
				zap.String("invite_id", inv.ID), zap.Error(err))
		}
		return nil, ErrInviteExpired
	}

	status := models.InviteStatusAccepted
	if !accept {
		status = models.InviteStatusDeclined
	}
	if _, err := s.invites.UpdateStatus(ctx, inv.ID, status); err != nil {
		return nil, err
	}
	inv.Status = status

	if !accept {
		entrant := models.Entrant{Email: normalize.Email(inv.RecipientEmail)}
		if ev, err := s.events.GetByID(ctx, inv.EventID); err == nil && ev != nil {
			for _, en := range ev.Invited {
				if normalize.Email(en.Email) == entrant.Email {
					entrant.Name = en.Name
					break
				}
			}
		}
		if err := s.events.MoveToDeclined(ctx, inv.EventID, entrant); err != nil {
			return nil, err
		}
	}
	return inv, nil
}

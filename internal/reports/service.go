package reports

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quizlabhq/quizlab-backend/internal/credentials"
	"github.com/quizlabhq/quizlab-backend/internal/orders"
	"github.com/quizlabhq/quizlab-backend/pkg/db/models"
	"github.com/quizlabhq/quizlab-backend/pkg/enums"
	pkgerrors "github.com/quizlabhq/quizlab-backend/pkg/errors"
	"github.com/quizlabhq/quizlab-backend/pkg/logger"
	"github.com/quizlabhq/quizlab-backend/pkg/mailer"
)

type ServiceParams struct {
	Orders        orders.Repository
	Links         Repository
	Tokens        *credentials.TokenIssuer
	Sessions      *credentials.SessionIssuer
	Mailer        mailer.Sender
	Logger        *logger.Logger
	PublicBaseURL string
	LinkTTL       time.Duration
}

// Service owns report access: minting one-time access links, consuming them
// into guest sessions, and authorizing report reads.
type Service struct {
	orders        orders.Repository
	links         Repository
	tokens        *credentials.TokenIssuer
	sessions      *credentials.SessionIssuer
	mail          mailer.Sender
	logg          *logger.Logger
	publicBaseURL string
	linkTTL       time.Duration
}

// Grant is the result of consuming an access link.
type Grant struct {
	Email       string
	CookieValue string
	ExpiresAt   time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repo required")
	}
	if params.Links == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "links repo required")
	}
	if params.Tokens == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "token issuer required")
	}
	if params.Sessions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "session issuer required")
	}
	linkTTL := params.LinkTTL
	if linkTTL <= 0 {
		linkTTL = 24 * time.Hour
	}
	return &Service{
		orders:        params.Orders,
		links:         params.Links,
		tokens:        params.Tokens,
		sessions:      params.Sessions,
		mail:          params.Mailer,
		logg:          params.Logger,
		publicBaseURL: strings.TrimRight(params.PublicBaseURL, "/"),
		linkTTL:       linkTTL,
	}, nil
}

// IssueAccessLink mints a one-time token for the latest paid order matching
// email, persists only the digest, and emails the raw token embedded in a
// URL. When no paid order exists it does nothing; the caller responds with
// the same generic message either way so mailbox ownership cannot be probed.
func (s *Service) IssueAccessLink(ctx context.Context, email string) error {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	order, err := s.orders.FindLatestPaidByEmail(ctx, normalized)
	if err != nil {
		if pkgerrors.As(err) != nil && pkgerrors.As(err).Code() == pkgerrors.CodeNotFound {
			return nil
		}
		return err
	}

	raw, err := s.tokens.Generate()
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate access token")
	}
	hash := s.tokens.Hash(raw)
	now := time.Now().UTC()

	link := &models.ReportAccessLink{
		OrderID:   order.ID,
		Email:     normalized,
		TokenHash: hash,
		ExpiresAt: now.Add(s.linkTTL),
	}
	if err := s.links.CreateLink(ctx, link); err != nil {
		return err
	}
	if err := s.orders.SetReportAccessTokenHash(ctx, order.ID, hash); err != nil {
		return err
	}

	if s.mail != nil {
		accessURL := fmt.Sprintf("%s/r/access?token=%s", s.publicBaseURL, url.QueryEscape(raw))
		body := fmt.Sprintf(
			`<p>Your report is ready. <a href="%s">Open your report</a>.</p><p>The link works once and expires in %d hours.</p>`,
			accessURL, int(s.linkTTL.Hours()),
		)
		if err := s.mail.Send(ctx, normalized, "Your QuizLab report access link", body); err != nil && s.logg != nil {
			// The link row is durable; mail delivery retries out of band.
			s.logg.Error(s.logg.WithOrderID(ctx, order.ID.String()), "reports.access_link_mail_failed", err)
		}
	}
	return nil
}

// ConsumeAccessLink spends a one-time token and converts it into a guest
// session. Every failure returns nil: the redirect handler must not reveal
// why a token was rejected.
func (s *Service) ConsumeAccessLink(ctx context.Context, rawToken string, now time.Time) *Grant {
	if strings.TrimSpace(rawToken) == "" {
		return nil
	}

	hash := s.tokens.Hash(rawToken)
	link, err := s.links.FindLinkByHash(ctx, hash)
	if err != nil {
		return nil
	}
	if !s.tokens.Verify(rawToken, link.TokenHash) {
		return nil
	}
	if !credentials.LinkActive(link.ExpiresAt, link.UsedAt, now) {
		return nil
	}

	consumed, err := s.links.ConsumeLink(ctx, hash, now)
	if err != nil || !consumed {
		return nil
	}

	cookie, expiresAt := s.sessions.Issue(link.Email, now)
	return &Grant{Email: link.Email, CookieValue: cookie, ExpiresAt: expiresAt}
}

// AuthorizeOrder grants report access when the anonymous user id matches the
// order exactly, or a valid guest session's email matches the order email
// case-insensitively. Both checks are attempted; either success grants.
func (s *Service) AuthorizeOrder(ctx context.Context, orderID uuid.UUID, anonUserID, cookieValue string, now time.Time) (*models.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	authorized := anonUserID != "" && order.UserID == anonUserID
	if !authorized && cookieValue != "" {
		if session := s.sessions.Verify(cookieValue, now); session != nil {
			authorized = strings.EqualFold(session.Email, order.Email)
		}
	}
	if !authorized {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "access denied")
	}

	if order.Status != enums.OrderStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "report not available")
	}
	return order, nil
}

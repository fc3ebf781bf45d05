package httpapi

import (
	"time"

	"github.com/Sunny-Hasho/Eventura-v1/auth"
	"github.com/Sunny-Hasho/Eventura-v1/notify"
	"github.com/Sunny-Hasho/Eventura-v1/payment"
	"github.com/Sunny-Hasho/Eventura-v1/pitch"
	"github.com/Sunny-Hasho/Eventura-v1/request"
)

type userView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      auth.Role `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserView(u auth.User) userView {
	return userView{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

type requestView struct {
	ID                 string         `json:"id"`
	ClientID           string         `json:"client_id"`
	Title              string         `json:"title"`
	Description        string         `json:"description"`
	AssignedProviderID *string        `json:"assigned_provider_id,omitempty"`
	AssignedPrice      *float64       `json:"assigned_price,omitempty"`
	Status             request.Status `json:"status"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

func toRequestView(r request.ServiceRequest) requestView {
	return requestView{
		ID:                 r.ID,
		ClientID:           r.ClientID,
		Title:              r.Title,
		Description:        r.Description,
		AssignedProviderID: r.AssignedProviderID,
		AssignedPrice:      r.AssignedPrice,
		Status:             r.Status,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

func toRequestViews(rs []request.ServiceRequest) []requestView {
	out := make([]requestView, 0, len(rs))
	for _, r := range rs {
		out = append(out, toRequestView(r))
	}
	return out
}

type pitchView struct {
	ID            string       `json:"id"`
	RequestID     string       `json:"request_id"`
	ProviderID    string       `json:"provider_id"`
	Message       string       `json:"message"`
	ProposedPrice float64      `json:"proposed_price"`
	Status        pitch.Status `json:"status"`
	CreatedAt     time.Time    `json:"created_at"`
}

func toPitchView(p pitch.Pitch) pitchView {
	return pitchView{
		ID:            p.ID,
		RequestID:     p.RequestID,
		ProviderID:    p.ProviderID,
		Message:       p.Message,
		ProposedPrice: p.ProposedPrice,
		Status:        p.Status,
		CreatedAt:     p.CreatedAt,
	}
}

func toPitchViews(ps []pitch.Pitch) []pitchView {
	out := make([]pitchView, 0, len(ps))
	for _, p := range ps {
		out = append(out, toPitchView(p))
	}
	return out
}

type paymentView struct {
	ID             string         `json:"id"`
	RequestID      string         `json:"request_id"`
	ClientID       string         `json:"client_id"`
	ProviderID     string         `json:"provider_id"`
	Amount         float64        `json:"amount"`
	PlatformFee    float64        `json:"platform_fee"`
	ProviderAmount float64        `json:"provider_amount"`
	Status         payment.Status `json:"status"`
	TransactionID  *string        `json:"transaction_id,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func toPaymentView(p payment.Payment) paymentView {
	return paymentView{
		ID:             p.ID,
		RequestID:      p.RequestID,
		ClientID:       p.ClientID,
		ProviderID:     p.ProviderID,
		Amount:         p.Amount,
		PlatformFee:    p.PlatformFee,
		ProviderAmount: p.ProviderAmount,
		Status:         p.Status,
		TransactionID:  p.TransactionID,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func toPaymentViews(ps []payment.Payment) []paymentView {
	out := make([]paymentView, 0, len(ps))
	for _, p := range ps {
		out = append(out, toPaymentView(p))
	}
	return out
}

type notificationView struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

func toNotificationViews(ns []notify.Notification) []notificationView {
	out := make([]notificationView, 0, len(ns))
	for _, n := range ns {
		out = append(out, notificationView{ID: n.ID, Message: n.Message, Read: n.Read, CreatedAt: n.CreatedAt})
	}
	return out
}

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/avasilescu/mobiplan/internal/notify"
)

// ackTTLDays converts the operator-configured expiry into the TTL used
// for acknowledgement keys so a snoozed alert resurfaces on schedule.
func (s *Server) ackTTL() time.Duration {
	days := s.Settings.Get().NotificationExpiryDays
	if days <= 0 {
		days = 7
	}
	return time.Duration(days) * 24 * time.Hour
}

// ListNotifications runs a fresh scan and filters acknowledged items.
func (s *Server) ListNotifications(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	items := s.Scanner.Scan()
	if s.Acks != nil {
		items = s.Acks.Filter(r.Context(), items)
	}
	if items == nil {
		items = []notify.Notification{}
	}
	writeJSON(w, items)
	s.instrument("notifications", "GET", start, http.StatusOK)
}

// AcknowledgeNotification snoozes one notification until its TTL lapses.
func (s *Server) AcknowledgeNotification(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if s.Acks == nil {
		http.Error(w, "acknowledgements unavailable", http.StatusServiceUnavailable)
		s.instrument("notification_ack", "POST", start, http.StatusServiceUnavailable)
		return
	}
	if err := s.Acks.Acknowledge(r.Context(), mux.Vars(r)["id"], s.ackTTL()); err != nil {
		s.writeError(w, err)
		s.instrument("notification_ack", "POST", start, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	s.instrument("notification_ack", "POST", start, http.StatusNoContent)
}

// UnacknowledgeNotification brings a snoozed notification back.
func (s *Server) UnacknowledgeNotification(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if s.Acks == nil {
		http.Error(w, "acknowledgements unavailable", http.StatusServiceUnavailable)
		s.instrument("notification_ack", "DELETE", start, http.StatusServiceUnavailable)
		return
	}
	if err := s.Acks.Unacknowledge(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, err)
		s.instrument("notification_ack", "DELETE", start, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	s.instrument("notification_ack", "DELETE", start, http.StatusNoContent)
}

// SendDigestHandler mails the current error and critical notifications to
// the configured recipients.
func (s *Server) SendDigestHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	items := s.Scanner.Scan()
	if s.Acks != nil {
		items = s.Acks.Filter(r.Context(), items)
	}

	if err := s.Mailer.SendDigest(items, s.Config.SMTPPass); err != nil {
		s.writeError(w, err)
		s.instrument("notification_digest", "POST", start, http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]int{"scanned": len(items)})
	s.instrument("notification_digest", "POST", start, http.StatusOK)
}

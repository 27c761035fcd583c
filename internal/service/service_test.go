package service_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/zlog"

	"ticketbooth/internal/api/api"
	"ticketbooth/internal/dto"
	"ticketbooth/internal/gate"
	"ticketbooth/internal/model"
	"ticketbooth/internal/repo"
	"ticketbooth/internal/service"
)

type fakeSettings map[string]any

func (f fakeSettings) GetBool(key string) bool {
	v, _ := f[key].(bool)
	return v
}

func (f fakeSettings) GetInt(key string) int {
	v, _ := f[key].(int)
	return v
}

func (f fakeSettings) GetString(key string) string {
	v, _ := f[key].(string)
	return v
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages [][]byte
}

func (f *fakeNotifier) Publish(message []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
	return nil
}

type fakeRepo struct {
	mu        sync.Mutex
	attendees map[int64]*model.Attendee
	payments  []*model.Payment
	nextID    int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{attendees: make(map[int64]*model.Attendee)}
}

func (f *fakeRepo) CreateAttendee(ctx context.Context, a *model.Attendee) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	clone := *a
	clone.ID = f.nextID
	clone.CreatedAt = time.Now()
	f.attendees[clone.ID] = &clone
	return clone.ID, nil
}

func (f *fakeRepo) findLocked(match func(*model.Attendee) bool) (*model.Attendee, error) {
	var found *model.Attendee
	for _, a := range f.attendees {
		if match(a) && (found == nil || a.ID < found.ID) {
			found = a
		}
	}
	if found == nil {
		return nil, repo.ErrAttendeeNotFound
	}
	clone := *found
	return &clone, nil
}

func (f *fakeRepo) GetAttendeeByEmail(ctx context.Context, email string) (*model.Attendee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.findLocked(func(a *model.Attendee) bool { return a.Email == email })
}

func (f *fakeRepo) GetAttendeeByUUID(ctx context.Context, uuid string) (*model.Attendee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.findLocked(func(a *model.Attendee) bool { return a.UUID == uuid })
}

func (f *fakeRepo) GetAttendeeByHashCode(ctx context.Context, code string) (*model.Attendee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.findLocked(func(a *model.Attendee) bool { return a.HashCode == code })
}

func (f *fakeRepo) MarkPaidTx(ctx context.Context, attendeeID int64, capacity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attendees[attendeeID]
	if !ok {
		return repo.ErrAttendeeNotFound
	}
	if a.IsPaid {
		return nil
	}
	count := 0
	for _, x := range f.attendees {
		if x.IsPaid {
			count++
		}
	}
	if capacity <= 0 || count >= capacity {
		return repo.ErrSoldOut
	}
	a.IsPaid = true
	return nil
}

func (f *fakeRepo) MarkAttendedTx(ctx context.Context, uuid string, at time.Time) (*model.Attendee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.attendees {
		if a.UUID != uuid {
			continue
		}
		if a.Type == model.TypeAttendee && !a.IsPaid {
			return nil, repo.ErrNotEligible
		}
		if a.AttendAt != nil {
			return nil, repo.ErrAlreadyAttended
		}
		stamp := at
		a.AttendAt = &stamp
		clone := *a
		return &clone, nil
	}
	return nil, repo.ErrAttendeeNotFound
}

func (f *fakeRepo) UpdateProfileByHashCode(ctx context.Context, code string, fields *model.Attendee) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.attendees {
		if a.HashCode != code {
			continue
		}
		a.Name = fields.Name
		a.Profession = fields.Profession
		a.SocialProfileURL = fields.SocialProfileURL
		a.AddressLine1 = fields.AddressLine1
		a.AddressLine2 = fields.AddressLine2
		a.City = fields.City
		a.District = fields.District
		return nil
	}
	return repo.ErrAttendeeNotFound
}

func (f *fakeRepo) RecordPaymentTx(ctx context.Context, p *model.Payment) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	// same predicate as the real ledger: an existing VALID payment for the
	// attendee, or any payment with this transaction id, blocks the insert
	for _, existing := range f.payments {
		if existing.TransactionID == p.TransactionID {
			return 0, repo.ErrDuplicatePayment
		}
		if existing.AttendeeID == p.AttendeeID && existing.Status == model.PaymentValid {
			return 0, repo.ErrDuplicatePayment
		}
	}
	clone := *p
	clone.ID = int64(len(f.payments) + 1)
	f.payments = append(f.payments, &clone)
	return clone.ID, nil
}

func (f *fakeRepo) CountPaidAttendees(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, a := range f.attendees {
		if a.IsPaid {
			count++
		}
	}
	return count, nil
}

func (f *fakeRepo) GetEligibleByUUID(ctx context.Context, uuid string) (*model.Attendee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.findLocked(func(a *model.Attendee) bool {
		return a.UUID == uuid && a.Eligible()
	})
}

func (f *fakeRepo) SearchEligible(ctx context.Context, email, mobile string) (*model.Attendee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.findLocked(func(a *model.Attendee) bool {
		return (a.Email == email || a.Mobile == mobile) && a.Eligible()
	})
}

func (f *fakeRepo) MigrateUp(migrationsDir string) error   { return nil }
func (f *fakeRepo) MigrateDown(migrationsDir string) error { return nil }

func (f *fakeRepo) paymentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payments)
}

type env struct {
	repo     *fakeRepo
	notifier *fakeNotifier
	settings fakeSettings
	app      http.Handler
}

func newEnv(t *testing.T) *env {
	t.Helper()
	zlog.Init()

	settings := fakeSettings{
		"event.registration_open":            true,
		"event.capacity":                     100,
		"event.ticket_price":                 "1500",
		"event.base_url":                     "http://test",
		"event.messages.registration_closed": "Registration Coming Soon",
		"event.messages.sold_out":            "Sold Out !!!",
		"event.messages.already_paid":        "We have received your payment already",
		"event.messages.payment_success":     "Payment successful",
		"event.messages.payment_error":       "Payment failed",
		"event.messages.registration_success": "Registered",
	}
	fr := newFakeRepo()
	fn := &fakeNotifier{}
	log := zlog.Logger
	g := gate.New(settings, fr)
	svc := service.NewService(fr, g, settings, &log, fn)
	app := api.NewRouters(&api.Routers{Service: svc})
	return &env{repo: fr, notifier: fn, settings: settings, app: app}
}

func (e *env) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	e.app.ServeHTTP(w, req)
	return w
}

func (e *env) get(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	e.app.ServeHTTP(w, req)
	return w
}

func ticketBuyerForm(email string) url.Values {
	return url.Values{
		"type":   {"attendee"},
		"name":   {"Jane Doe"},
		"email":  {email},
		"mobile": {"01712345678"},
	}
}

func (e *env) registerTicketBuyer(t *testing.T, email string) *model.Attendee {
	t.Helper()
	w := e.postForm("/v1/register", ticketBuyerForm(email))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	a, err := e.repo.GetAttendeeByEmail(context.Background(), email)
	require.NoError(t, err)
	return a
}

func (e *env) validCallback(attendeeUUID, txID string) url.Values {
	return url.Values{
		"pay_status":     {model.PaymentValid},
		"opt_a":          {attendeeUUID},
		"transaction_id": {txID},
		"card_type":      {"VISA"},
		"amount":         {"1500"},
	}
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestRegisterTicketBuyer(t *testing.T) {
	e := newEnv(t)

	w := e.postForm("/v1/register", ticketBuyerForm("a@x.com"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	a, err := e.repo.GetAttendeeByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.False(t, a.IsPaid)
	assert.NotEmpty(t, a.UUID)
	assert.GreaterOrEqual(t, len(a.HashCode), 20)
	assert.Equal(t, "8801712345678", a.Mobile)

	assert.Contains(t, w.Body.String(), "/v1/payment/"+a.UUID)
}

func TestRegisterClosedWindow(t *testing.T) {
	e := newEnv(t)
	e.settings["event.registration_open"] = false

	w := e.postForm("/v1/register", ticketBuyerForm("a@x.com"))
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.RegistrationClosed, resp.Error.Code)
}

func TestRegisterSoldOut(t *testing.T) {
	e := newEnv(t)
	e.settings["event.capacity"] = 1
	paid := e.registerTicketBuyer(t, "first@x.com")
	require.NoError(t, e.repo.MarkPaidTx(context.Background(), paid.ID, 1))

	w := e.postForm("/v1/register", ticketBuyerForm("second@x.com"))
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.SoldOut, resp.Error.Code)
}

func TestRegisterWindowCheckedBeforeCapacity(t *testing.T) {
	e := newEnv(t)
	e.settings["event.registration_open"] = false
	e.settings["event.sold_out_override"] = true

	w := e.postForm("/v1/register", ticketBuyerForm("a@x.com"))
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.RegistrationClosed, resp.Error.Code)
}

func TestRegisterResumesAbandonedPayment(t *testing.T) {
	e := newEnv(t)
	first := e.registerTicketBuyer(t, "a@x.com")

	w := e.postForm("/v1/register", ticketBuyerForm("a@x.com"))
	require.Equal(t, http.StatusCreated, w.Code)

	second, err := e.repo.GetAttendeeByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.UUID, second.UUID)
}

func TestRegisterGuestSkipsPaymentAndGate(t *testing.T) {
	e := newEnv(t)
	e.settings["event.registration_open"] = false

	form := url.Values{
		"type":   {"guest"},
		"name":   {"Guest One"},
		"email":  {"g@x.com"},
		"mobile": {"01712345679"},
	}
	w := e.postForm("/v1/register", form)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "payment_url")

	a, err := e.repo.GetAttendeeByEmail(context.Background(), "g@x.com")
	require.NoError(t, err)
	assert.Equal(t, model.TypeGuest, a.Type)
}

func TestRegisterValidationFailure(t *testing.T) {
	e := newEnv(t)
	form := url.Values{
		"type":   {"attendee"},
		"name":   {"Jo"},
		"email":  {"not-an-email"},
		"mobile": {"123"},
	}
	w := e.postForm("/v1/register", form)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaymentCallbackValid(t *testing.T) {
	e := newEnv(t)
	a := e.registerTicketBuyer(t, "a@x.com")

	w := e.postForm("/v1/payment/callback", e.validCallback(a.UUID, "tx1"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	updated, err := e.repo.GetAttendeeByUUID(context.Background(), a.UUID)
	require.NoError(t, err)
	assert.True(t, updated.IsPaid)
	assert.Equal(t, 1, e.repo.paymentCount())
}

func TestPaymentCallbackDuplicateTransaction(t *testing.T) {
	e := newEnv(t)
	a := e.registerTicketBuyer(t, "a@x.com")

	w := e.postForm("/v1/payment/callback", e.validCallback(a.UUID, "tx1"))
	require.Equal(t, http.StatusOK, w.Code)

	w = e.postForm("/v1/payment/callback", e.validCallback(a.UUID, "tx1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), dto.AlreadyProcessed)

	updated, err := e.repo.GetAttendeeByUUID(context.Background(), a.UUID)
	require.NoError(t, err)
	assert.True(t, updated.IsPaid)
	assert.Equal(t, 1, e.repo.paymentCount())
}

func TestPaymentCallbackSecondValidForSameAttendee(t *testing.T) {
	e := newEnv(t)
	a := e.registerTicketBuyer(t, "a@x.com")

	w := e.postForm("/v1/payment/callback", e.validCallback(a.UUID, "tx1"))
	require.Equal(t, http.StatusOK, w.Code)

	w = e.postForm("/v1/payment/callback", e.validCallback(a.UUID, "tx2"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), dto.AlreadyProcessed)
	assert.Equal(t, 1, e.repo.paymentCount())
}

func TestPaymentCallbackRejectedByGateway(t *testing.T) {
	e := newEnv(t)
	a := e.registerTicketBuyer(t, "a@x.com")

	form := e.validCallback(a.UUID, "tx1")
	form.Set("pay_status", "FAILED")
	w := e.postForm("/v1/payment/callback", form)
	require.Equal(t, http.StatusBadRequest, w.Code)

	updated, err := e.repo.GetAttendeeByUUID(context.Background(), a.UUID)
	require.NoError(t, err)
	assert.False(t, updated.IsPaid)
	// failed attempt still lands in the ledger for audit
	assert.Equal(t, 1, e.repo.paymentCount())
}

func TestPaymentCallbackMissingTransactionID(t *testing.T) {
	e := newEnv(t)
	a := e.registerTicketBuyer(t, "a@x.com")

	form := e.validCallback(a.UUID, "")
	w := e.postForm("/v1/payment/callback", form)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, e.repo.paymentCount())

	updated, err := e.repo.GetAttendeeByUUID(context.Background(), a.UUID)
	require.NoError(t, err)
	assert.False(t, updated.IsPaid)
}

func TestPaymentCallbackCapacityBoundary(t *testing.T) {
	e := newEnv(t)
	e.settings["event.capacity"] = 2

	first := e.registerTicketBuyer(t, "first@x.com")
	second := e.registerTicketBuyer(t, "second@x.com")
	third := e.registerTicketBuyer(t, "third@x.com")

	w := e.postForm("/v1/payment/callback", e.validCallback(first.UUID, "tx1"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = e.postForm("/v1/payment/callback", e.validCallback(second.UUID, "tx2"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// the pool is exhausted: the third callback must not reconcile as paid
	w = e.postForm("/v1/payment/callback", e.validCallback(third.UUID, "tx3"))
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.SoldOut, resp.Error.Code)

	unpaid, err := e.repo.GetAttendeeByUUID(context.Background(), third.UUID)
	require.NoError(t, err)
	assert.False(t, unpaid.IsPaid)

	count, err := e.repo.CountPaidAttendees(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// a retry of an already-successful callback still confirms paid state
	// at capacity instead of being turned away
	w = e.postForm("/v1/payment/callback", e.validCallback(first.UUID, "tx1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), dto.AlreadyProcessed)

	count, err = e.repo.CountPaidAttendees(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestPaymentCallbackUnknownAttendee(t *testing.T) {
	e := newEnv(t)
	w := e.postForm("/v1/payment/callback", e.validCallback("00000000-0000-0000-0000-000000000000", "tx1"))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestVerifyUnpaidTicketBuyerInvisible(t *testing.T) {
	e := newEnv(t)
	a := e.registerTicketBuyer(t, "a@x.com")

	w := e.get("/v1/attendees/" + a.UUID + "/verify")
	require.Equal(t, http.StatusNotFound, w.Code)

	e.postForm("/v1/payment/callback", e.validCallback(a.UUID, "tx1"))

	w = e.get("/v1/attendees/" + a.UUID + "/verify")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/v1/attendees/"+a.UUID+"/attend")
}

func TestVerifyAlreadyAttended(t *testing.T) {
	e := newEnv(t)
	a := e.registerTicketBuyer(t, "a@x.com")
	e.postForm("/v1/payment/callback", e.validCallback(a.UUID, "tx1"))

	w := e.postForm("/v1/attendees/"+a.UUID+"/attend", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.get("/v1/attendees/" + a.UUID + "/verify")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestApproveAttendance(t *testing.T) {
	e := newEnv(t)
	a := e.registerTicketBuyer(t, "a@x.com")
	e.postForm("/v1/payment/callback", e.validCallback(a.UUID, "tx1"))

	w := e.postForm("/v1/attendees/"+a.UUID+"/attend", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.postForm("/v1/attendees/"+a.UUID+"/attend", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Already attended")
}

func TestApproveUnpaidTicketBuyerRejected(t *testing.T) {
	e := newEnv(t)
	a := e.registerTicketBuyer(t, "a@x.com")

	w := e.postForm("/v1/attendees/"+a.UUID+"/attend", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestApproveConcurrentSingleWinner(t *testing.T) {
	e := newEnv(t)
	a := e.registerTicketBuyer(t, "a@x.com")
	e.postForm("/v1/payment/callback", e.validCallback(a.UUID, "tx1"))

	const attempts = 16
	codes := make(chan int, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := e.postForm("/v1/attendees/"+a.UUID+"/attend", nil)
			codes <- w.Code
		}()
	}
	wg.Wait()
	close(codes)

	approved := 0
	for code := range codes {
		if code == http.StatusOK {
			approved++
		}
	}
	assert.Equal(t, 1, approved)
}

func TestSearchByMobileVariant(t *testing.T) {
	e := newEnv(t)
	form := url.Values{
		"type":        {"volunteer"},
		"name":        {"Vol One"},
		"email":       {"v@x.com"},
		"mobile":      {"01712345678"},
		"tshirt_size": {"L"},
	}
	w := e.postForm("/v1/register", form)
	require.Equal(t, http.StatusCreated, w.Code)

	// stored canonical, searched with the +88 variant
	w = e.get("/v1/attendees/search?q=" + url.QueryEscape("+8801712345678"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "v@x.com")
}

func TestSearchTShirtOnly(t *testing.T) {
	e := newEnv(t)
	form := url.Values{
		"type":        {"volunteer"},
		"name":        {"Vol One"},
		"email":       {"v@x.com"},
		"mobile":      {"01712345678"},
		"tshirt_size": {"XL"},
	}
	e.postForm("/v1/register", form)

	w := e.get("/v1/attendees/search?tq=v@x.com")
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.TShirtResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "XL", resp.TShirt)
	// restricted read path: nothing but the t-shirt size leaks
	assert.NotContains(t, w.Body.String(), "v@x.com")
}

func TestSearchTermPrefersQOverTq(t *testing.T) {
	e := newEnv(t)
	for i, v := range []struct{ email, size string }{
		{"one@x.com", "M"},
		{"two@x.com", "XXL"},
	} {
		form := url.Values{
			"type":        {"volunteer"},
			"name":        {"Vol Person"},
			"email":       {v.email},
			"mobile":      {"0171234567" + string(rune('0'+i))},
			"tshirt_size": {v.size},
		}
		w := e.postForm("/v1/register", form)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	// tq still selects the restricted read path, but q supplies the term
	w := e.get("/v1/attendees/search?q=one@x.com&tq=two@x.com")
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.TShirtResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "M", resp.TShirt)
}

func TestSearchMiss(t *testing.T) {
	e := newEnv(t)
	w := e.get("/v1/attendees/search?q=missing@x.com")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestShowPaymentAlreadyPaid(t *testing.T) {
	e := newEnv(t)
	a := e.registerTicketBuyer(t, "a@x.com")
	e.postForm("/v1/payment/callback", e.validCallback(a.UUID, "tx1"))

	w := e.get("/v1/payment/" + a.UUID)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), dto.AlreadyProcessed)
}

func TestRequestUpdateLinkPublishesNotification(t *testing.T) {
	e := newEnv(t)
	a := e.registerTicketBuyer(t, "a@x.com")

	w := e.postForm("/v1/profile/link", url.Values{"email": {"a@x.com"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.Len(t, e.notifier.messages, 1)
	var msg dto.ProfileUpdateMessage
	require.NoError(t, json.Unmarshal(e.notifier.messages[0], &msg))
	assert.Equal(t, a.ID, msg.AttendeeID)
	assert.Contains(t, msg.UpdateURL, a.HashCode)
}

func TestRequestUpdateLinkUnknownEmail(t *testing.T) {
	e := newEnv(t)
	w := e.postForm("/v1/profile/link", url.Values{"email": {"nobody@x.com"}})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, e.notifier.messages)
}

func TestSignInWithHashCode(t *testing.T) {
	e := newEnv(t)
	a := e.registerTicketBuyer(t, "a@x.com")

	w := e.postForm("/v1/profile/signin", url.Values{"hash_code": {a.HashCode}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), a.HashCode)

	w = e.postForm("/v1/profile/signin", url.Values{"hash_code": {strings.Repeat("f", 32)}})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateProfile(t *testing.T) {
	e := newEnv(t)
	a := e.registerTicketBuyer(t, "a@x.com")

	form := url.Values{
		"name":               {"Jane Updated"},
		"profession":         {"Engineer"},
		"social_profile_url": {"https://example.com/jane"},
		"city":               {"Dhaka"},
	}
	w := e.postForm("/v1/profile/"+a.HashCode, form)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	updated, err := e.repo.GetAttendeeByHashCode(context.Background(), a.HashCode)
	require.NoError(t, err)
	assert.Equal(t, "Jane Updated", updated.Name)
	assert.Equal(t, "Engineer", updated.Profession)
	assert.Equal(t, "Dhaka", updated.City)
	// payment and attendance state untouched by the profile flow
	assert.False(t, updated.IsPaid)
	assert.Nil(t, updated.AttendAt)
}

func TestUpdateProfileBadCode(t *testing.T) {
	e := newEnv(t)
	form := url.Values{
		"name":               {"Jane Updated"},
		"profession":         {"Engineer"},
		"social_profile_url": {"https://example.com/jane"},
	}
	w := e.postForm("/v1/profile/"+strings.Repeat("f", 32), form)
	require.Equal(t, http.StatusNotFound, w.Code)
}

// Package checkout собирает заказ из корзины и данных покупателя.
package checkout

import (
	"sort"
	"strings"
	"time"

	"github.com/mmeshcher/soapyfy/internal/model"
	"github.com/mmeshcher/soapyfy/internal/validation"
)

// Mode способ оформления заказа.
type Mode string

const (
	ModeGuest    Mode = "guest"
	ModeLogin    Mode = "login"
	ModeRegister Mode = "register"
)

// Credentials данные встроенной формы входа или регистрации.
type Credentials struct {
	Email    string
	Password string
}

// Request содержит всё, что покупатель отправляет при оформлении.
// Guest используется гостем, Shipping используется владельцем учётной записи
// (email в Shipping игнорируется).
type Request struct {
	Mode          Mode
	Guest         model.ShippingInfo
	Shipping      model.ShippingInfo
	Auth          Credentials
	PaymentMethod model.PaymentMethod
}

// NeedsAuth сообщает, нужно ли перед оформлением выполнить вход или регистрацию.
func (r Request) NeedsAuth(authenticated bool) bool {
	return !authenticated && (r.Mode == ModeLogin || r.Mode == ModeRegister)
}

// Ключи полей формы оформления.
const (
	FieldEmail         = "email"
	FieldAuthEmail     = "authEmail"
	FieldPassword      = "password"
	FieldName          = "name"
	FieldAddress       = "address"
	FieldCity          = "city"
	FieldPostalCode    = "postalCode"
	FieldPhone         = "phone"
	FieldPaymentMethod = "paymentMethod"
	FieldMode          = "checkoutType"
)

var (
	msgEmailRequired    = model.Text{FR: "Email requis", EN: "Email required"}
	msgEmailInvalid     = model.Text{FR: "Email invalide", EN: "Invalid email"}
	msgPasswordRequired = model.Text{FR: "Mot de passe requis", EN: "Password required"}
	msgPasswordShort    = model.Text{FR: "Minimum 6 caractères", EN: "Minimum 6 characters"}
	msgNameRequired     = model.Text{FR: "Nom requis", EN: "Name required"}
	msgAddressRequired  = model.Text{FR: "Adresse requise", EN: "Address required"}
	msgCityRequired     = model.Text{FR: "Ville requise", EN: "City required"}
	msgPostalRequired   = model.Text{FR: "Code postal requis", EN: "Postal code required"}
	msgPhoneRequired    = model.Text{FR: "Téléphone requis", EN: "Phone required"}
	msgPaymentInvalid   = model.Text{FR: "Mode de paiement invalide", EN: "Invalid payment method"}
	msgModeInvalid      = model.Text{FR: "Type de commande invalide", EN: "Invalid checkout type"}
)

// FieldErrors ошибки валидации по ключу поля, по одной на поле.
type FieldErrors map[string]model.Text

// Error перечисляет поля с ошибками в алфавитном порядке.
func (e FieldErrors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "invalid fields: " + strings.Join(keys, ", ")
}

// Localize возвращает сообщения на указанном языке.
func (e FieldErrors) Localize(lang model.Language) map[string]string {
	out := make(map[string]string, len(e))
	for k, v := range e {
		out[k] = v.In(lang)
	}
	return out
}

// Validate проверяет запрос до любого обращения к хранилищу.
// Возвращает nil, если ошибок нет.
func Validate(req Request, authenticated bool) FieldErrors {
	errs := FieldErrors{}

	if !authenticated {
		switch req.Mode {
		case ModeGuest, "":
			checkEmail(errs, FieldEmail, req.Guest.Email)
		case ModeLogin, ModeRegister:
			checkCredentials(errs, FieldAuthEmail, req.Auth, req.Mode == ModeRegister)
		default:
			errs[FieldMode] = msgModeInvalid
		}
	}

	form := ShippingForm(req, authenticated)
	required := []struct {
		key   string
		value string
		msg   model.Text
	}{
		{FieldName, form.Name, msgNameRequired},
		{FieldAddress, form.Address, msgAddressRequired},
		{FieldCity, form.City, msgCityRequired},
		{FieldPostalCode, form.PostalCode, msgPostalRequired},
		{FieldPhone, form.Phone, msgPhoneRequired},
	}
	for _, f := range required {
		if validation.IsBlank(f.value) {
			errs[f.key] = f.msg
		}
	}

	if req.PaymentMethod != "" && !req.PaymentMethod.Valid() {
		errs[FieldPaymentMethod] = msgPaymentInvalid
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// ValidateCredentials проверяет отдельную форму входа или регистрации.
// Ошибки возвращаются под ключами email и password.
func ValidateCredentials(c Credentials, register bool) FieldErrors {
	errs := FieldErrors{}
	checkCredentials(errs, FieldEmail, c, register)
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func checkCredentials(errs FieldErrors, emailKey string, c Credentials, register bool) {
	checkEmail(errs, emailKey, c.Email)
	switch {
	case c.Password == "":
		errs[FieldPassword] = msgPasswordRequired
	case register && !validation.IsValidPassword(c.Password):
		errs[FieldPassword] = msgPasswordShort
	}
}

func checkEmail(errs FieldErrors, key, email string) {
	email = validation.NormalizeEmail(email)
	switch {
	case email == "":
		errs[key] = msgEmailRequired
	case !validation.IsValidEmail(email):
		errs[key] = msgEmailInvalid
	}
}

// ShippingForm выбирает форму доставки: гостевую для гостя, отдельную для владельца учётной записи.
func ShippingForm(req Request, authenticated bool) model.ShippingInfo {
	if !authenticated && (req.Mode == ModeGuest || req.Mode == "") {
		return req.Guest
	}
	return req.Shipping
}

// ResolveBuyerEmail выбирает email покупателя: email учётной записи, если покупатель
// вошёл; иначе email гостевой формы; иначе email встроенной формы входа.
func ResolveBuyerEmail(account *model.User, guestEmail, authEmail string) string {
	if account != nil && !validation.IsBlank(account.Email) {
		return account.Email
	}
	if g := validation.NormalizeEmail(guestEmail); g != "" {
		return g
	}
	return validation.NormalizeEmail(authEmail)
}

// Buyer собирает блок контактов и доставки, сохраняемый в заказе.
func Buyer(req Request, account *model.User) model.ShippingInfo {
	form := ShippingForm(req, account != nil)
	return model.ShippingInfo{
		Email:      ResolveBuyerEmail(account, req.Guest.Email, req.Auth.Email),
		Name:       strings.TrimSpace(form.Name),
		Address:    strings.TrimSpace(form.Address),
		City:       strings.TrimSpace(form.City),
		PostalCode: strings.TrimSpace(form.PostalCode),
		Phone:      strings.TrimSpace(form.Phone),
	}
}

// Build создаёт снимок заказа. Позиции копируются, суммы фиксируются на момент вызова,
// идентификатор пользователя проставляется только владельцу учётной записи.
func Build(items []model.CartItem, totals model.Totals, buyer model.ShippingInfo, account *model.User, payment model.PaymentMethod, now time.Time) model.Order {
	snapshot := make([]model.CartItem, len(items))
	copy(snapshot, items)

	if payment == "" {
		payment = model.PaymentPayLater
	}

	info := buyer
	o := model.Order{
		Items:         snapshot,
		Subtotal:      totals.Subtotal,
		Shipping:      totals.Shipping,
		Taxes:         totals.Taxes,
		Total:         totals.Total,
		PaymentMethod: payment,
		GuestInfo:     &info,
		Status:        model.OrderStatusPending,
		Version:       1,
		CreatedAt:     now.UTC(),
	}
	if account != nil {
		o.UserID = account.ID
	}
	return o
}

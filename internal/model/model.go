// Package model содержит доменные сущности витрины soapyfy.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product описывает товар каталога. Каталог неизменяем во время работы сервиса.
type Product struct {
	ID          string
	Name        Text
	Description Text
	Ingredients TextList
	Price       string
	Image       string
	Botanical   string
}

// CartItem представляет позицию корзины.
type CartItem struct {
	ID       string `json:"id" bson:"id"`
	Name     Text   `json:"name" bson:"name"`
	Price    string `json:"price" bson:"price"`
	Image    string `json:"image" bson:"image"`
	Quantity int    `json:"quantity" bson:"quantity"`
}

// Totals содержит производные суммы корзины. FreeShippingRemaining равна нулю,
// если порог бесплатной доставки достигнут.
type Totals struct {
	Subtotal              decimal.Decimal
	Shipping              decimal.Decimal
	Taxes                 decimal.Decimal
	Total                 decimal.Decimal
	FreeShippingRemaining decimal.Decimal
	ItemCount             int
}

// User представляет зарегистрированного покупателя.
type User struct {
	ID           string
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
}

// AdminUser описывает единственную учётную запись администратора.
type AdminUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// RoleAdmin роль администратора.
const RoleAdmin = "admin"

// PaymentMethod способ оплаты. Это только метка, реального списания нет.
type PaymentMethod string

const (
	PaymentPayLater PaymentMethod = "payLater"
	PaymentStripe   PaymentMethod = "stripe"
)

// Valid сообщает, входит ли способ оплаты в допустимый набор.
func (p PaymentMethod) Valid() bool {
	return p == PaymentPayLater || p == PaymentStripe
}

// ShippingInfo содержит контактные данные и адрес доставки заказа.
type ShippingInfo struct {
	Email      string `json:"email" bson:"email"`
	Name       string `json:"name" bson:"name"`
	Address    string `json:"address" bson:"address"`
	City       string `json:"city" bson:"city"`
	PostalCode string `json:"postalCode" bson:"postalCode"`
	Phone      string `json:"phone" bson:"phone"`
}

// Order описывает оформленный заказ. Позиции являются снимком корзины на момент оформления.
type Order struct {
	ID            string
	UserID        string
	Items         []CartItem
	Subtotal      decimal.Decimal
	Shipping      decimal.Decimal
	Taxes         decimal.Decimal
	Total         decimal.Decimal
	PaymentMethod PaymentMethod
	GuestInfo     *ShippingInfo
	Status        OrderStatus
	Version       int64
	CreatedAt     time.Time
}

// BuyerEmail возвращает email покупателя, сохранённый в заказе.
func (o *Order) BuyerEmail() string {
	if o.GuestInfo == nil {
		return ""
	}
	return o.GuestInfo.Email
}

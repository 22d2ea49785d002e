package model

// OrderStatus описывает статус обработки заказа.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
)

// OrderStatuses перечисляет статусы в порядке их прохождения.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusShipped,
	OrderStatusDelivered,
}

// Rank возвращает позицию статуса в последовательности или -1 для неизвестного статуса.
func (s OrderStatus) Rank() int {
	for i, st := range OrderStatuses {
		if st == s {
			return i
		}
	}
	return -1
}

// Valid сообщает, входит ли статус в закрытый набор.
func (s OrderStatus) Valid() bool {
	return s.Rank() >= 0
}

// Label возвращает подпись статуса для отображения.
func (s OrderStatus) Label() Text {
	switch s {
	case OrderStatusPending:
		return Text{FR: "En attente", EN: "Pending"}
	case OrderStatusConfirmed:
		return Text{FR: "Confirmée", EN: "Confirmed"}
	case OrderStatusShipped:
		return Text{FR: "Expédiée", EN: "Shipped"}
	case OrderStatusDelivered:
		return Text{FR: "Livrée", EN: "Delivered"}
	default:
		return Text{FR: string(s), EN: string(s)}
	}
}

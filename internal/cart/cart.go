// Package cart содержит корзину покупателя: упорядоченный список позиций.
package cart

import (
	"github.com/mmeshcher/soapyfy/internal/model"
	"github.com/mmeshcher/soapyfy/internal/pricing"
)

// MaxQuantity наибольшее количество одного товара в корзине.
const MaxQuantity = 99

// Cart хранит позиции корзины в порядке добавления.
// Количество каждой позиции лежит в пределах от 1 до MaxQuantity.
// Cart не синхронизирован: единственного писателя обеспечивает менеджер сессий.
type Cart struct {
	Lines []model.CartItem `json:"items"`
}

// AddItem добавляет товар. Для уже имеющегося товара количество увеличивается,
// но не выше MaxQuantity. Неположительное количество трактуется как одна штука.
func (c *Cart) AddItem(p model.Product, quantity int) {
	if quantity <= 0 {
		quantity = 1
	}
	quantity = min(quantity, MaxQuantity)

	if i := c.index(p.ID); i >= 0 {
		c.Lines[i].Quantity = min(c.Lines[i].Quantity, MaxQuantity-quantity) + quantity
		return
	}

	c.Lines = append(c.Lines, model.CartItem{
		ID:       p.ID,
		Name:     p.Name,
		Price:    p.Price,
		Image:    p.Image,
		Quantity: quantity,
	})
}

// SetQuantity задаёт количество позиции, ограниченное MaxQuantity. Ноль и меньше
// удаляют позицию, отсутствующая позиция игнорируется.
func (c *Cart) SetQuantity(id string, quantity int) {
	i := c.index(id)
	if i < 0 {
		return
	}
	if quantity <= 0 {
		c.removeAt(i)
		return
	}
	c.Lines[i].Quantity = min(quantity, MaxQuantity)
}

// RemoveItem удаляет позицию, если она есть.
func (c *Cart) RemoveItem(id string) {
	if i := c.index(id); i >= 0 {
		c.removeAt(i)
	}
}

// Clear очищает корзину.
func (c *Cart) Clear() {
	c.Lines = nil
}

// Items возвращает копию позиций.
func (c *Cart) Items() []model.CartItem {
	out := make([]model.CartItem, len(c.Lines))
	copy(out, c.Lines)
	return out
}

// Len возвращает число различных позиций.
func (c *Cart) Len() int {
	return len(c.Lines)
}

// ItemCount возвращает суммарное количество товаров.
func (c *Cart) ItemCount() int {
	n := 0
	for _, it := range c.Lines {
		n += it.Quantity
	}
	return n
}

// Totals вычисляет суммы корзины.
func (c *Cart) Totals(e *pricing.Engine) model.Totals {
	return e.Totals(c.Lines)
}

func (c *Cart) index(id string) int {
	for i, it := range c.Lines {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func (c *Cart) removeAt(i int) {
	c.Lines = append(c.Lines[:i:i], c.Lines[i+1:]...)
}

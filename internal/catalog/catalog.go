// Package catalog содержит неизменяемый каталог мыла ручной работы.
package catalog

import "github.com/mmeshcher/soapyfy/internal/model"

var products = []model.Product{
	{
		ID:   "1",
		Name: model.Text{FR: "🌸 Savon Lavande", EN: "🌸 Lavender Soap"},
		Description: model.Text{
			FR: "Apaisant, peaux sensibles. Huile essentielle de lavande de Provence pour une relaxation profonde.",
			EN: "Calming, sensitive skin. Provence lavender essential oil for deep relaxation.",
		},
		Ingredients: model.TextList{
			FR: []string{"Huile d'olive bio", "Lavande de Provence", "Beurre de karité", "Huile de coco"},
			EN: []string{"Organic olive oil", "Provence lavender", "Shea butter", "Coconut oil"},
		},
		Price:     "$5.00 CAD",
		Image:     "https://i.ibb.co/G4N7kks8/Close-Up-Of-Lavender-Soap-Bar-With-Embossed-Text.png",
		Botanical: "🌿",
	},
	{
		ID:   "2",
		Name: model.Text{FR: "🍊 Savon Fleur d'Oranger", EN: "🍊 Orange Blossom Soap"},
		Description: model.Text{
			FR: "Énergisant, tous types de peau. Essence de fleur d'oranger pour un réveil sensoriel.",
			EN: "Energizing, all skin types. Orange blossom essence for a sensory awakening.",
		},
		Ingredients: model.TextList{
			FR: []string{"Huile d'olive bio", "Fleur d'oranger", "Glycérine végétale", "Vitamine E"},
			EN: []string{"Organic olive oil", "Orange blossom", "Vegetable glycerin", "Vitamin E"},
		},
		Price:     "$5.00 CAD",
		Image:     "https://i.ibb.co/YByxS4rC/Close-Up-Of-Peach-Soap-With-Embossed-Fleur-D-Oranger.png",
		Botanical: "🌸",
	},
	{
		ID:   "3",
		Name: model.Text{FR: "🌺 Savon Jasmin", EN: "🌺 Jasmine Soap"},
		Description: model.Text{
			FR: "Luxueux, peaux matures. Parfum envoûtant de jasmin pour une expérience sensorielle unique.",
			EN: "Luxurious, mature skin. Enchanting jasmine fragrance for a unique sensory experience.",
		},
		Ingredients: model.TextList{
			FR: []string{"Huile d'argan", "Jasmin sambac", "Beurre de cacao", "Huile d'amande douce"},
			EN: []string{"Argan oil", "Sambac jasmine", "Cocoa butter", "Sweet almond oil"},
		},
		Price:     "$5.00 CAD",
		Image:     "https://i.ibb.co/Vc1jDwPv/Close-Up-Of-Cream-Soap-Bar-With-Embossed-Design.png",
		Botanical: "🌺",
	},
}

// Catalog предоставляет доступ только на чтение к товарам.
type Catalog struct {
	items []model.Product
	byID  map[string]int
}

// New создаёт каталог из переданного списка товаров.
func New(items []model.Product) *Catalog {
	c := &Catalog{
		items: make([]model.Product, len(items)),
		byID:  make(map[string]int, len(items)),
	}
	copy(c.items, items)
	for i, p := range c.items {
		c.byID[p.ID] = i
	}
	return c
}

// Default возвращает каталог витрины.
func Default() *Catalog {
	return New(products)
}

// List возвращает копию всех товаров в порядке каталога.
func (c *Catalog) List() []model.Product {
	out := make([]model.Product, len(c.items))
	copy(out, c.items)
	return out
}

// Lookup ищет товар по идентификатору.
func (c *Catalog) Lookup(id string) (model.Product, bool) {
	i, ok := c.byID[id]
	if !ok {
		return model.Product{}, false
	}
	return c.items[i], true
}

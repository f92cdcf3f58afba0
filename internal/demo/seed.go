package demo

import (
	"github.com/shashiranjanraj/qcache/app/models"
	"github.com/shashiranjanraj/qcache/pkg/orm"
)

// SeedFixtures populates the Product/Order/User tables the demo's query
// definitions read from, unless they are already populated (re-running the
// demo binary against an existing qcache.db shouldn't duplicate rows).
func SeedFixtures() error {
	var users []models.User
	if err := orm.DB().Model(&models.User{}).Get(&users); err != nil {
		return err
	}
	if len(users) > 0 {
		return nil
	}

	fixtures := []models.User{
		{Name: "Ada Lovelace", Email: "ada@example.com", Password: "seeded", Role: "admin"},
		{Name: "Grace Hopper", Email: "grace@example.com", Password: "seeded", Role: "user"},
	}
	for i := range fixtures {
		if err := orm.DB().Create(&fixtures[i]); err != nil {
			return err
		}
	}

	products := []models.Product{
		{Name: "Mechanical Keyboard", Description: "Hot-swappable, 75%", Price: 129.99, Stock: 40, SKU: "KEY-001"},
		{Name: "4K Monitor", Description: "27-inch IPS panel", Price: 349.00, Stock: 15, SKU: "MON-027"},
		{Name: "USB-C Dock", Description: "10-port hub", Price: 79.50, Stock: 60, SKU: "DOC-010"},
		{Name: "Wireless Mouse", Description: "Ergonomic, silent clicks", Price: 39.99, Stock: 200, SKU: "MOU-002"},
		{Name: "Standing Desk", Description: "Electric height adjust", Price: 449.00, Stock: 8, SKU: "DSK-100"},
	}
	for i := range products {
		if err := orm.DB().Create(&products[i]); err != nil {
			return err
		}
	}

	orders := []models.Order{
		{UserID: fixtures[0].ID, Total: 129.99, Status: "paid"},
		{UserID: fixtures[0].ID, Total: 79.50, Status: "pending"},
		{UserID: fixtures[1].ID, Total: 349.00, Status: "paid"},
	}
	for i := range orders {
		if err := orm.DB().Create(&orders[i]); err != nil {
			return err
		}
	}

	return nil
}

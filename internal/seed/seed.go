package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	configdomain "github.com/smallbiznis/cobranca/internal/agentconfig/domain"
	chargedomain "github.com/smallbiznis/cobranca/internal/charge/domain"
	customerdomain "github.com/smallbiznis/cobranca/internal/customer/domain"
	"gorm.io/gorm"
)

const (
	demoCustomerName  = "Maria Oliveira"
	demoCustomerEmail = "maria.oliveira@example.com.br"
	demoCustomerPhone = "+5511912345678"
)

// EnsureDemoTenant seeds one tenant with the agent switched on, a sample
// customer and a pair of open charges. Safe to call on every startup; the
// demo customer email is the idempotency key. Dunning steps are not seeded
// here, the first scheduled pass provisions the default rule.
func EnsureDemoTenant(db *gorm.DB) (snowflake.ID, error) {
	if db == nil {
		return 0, errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return 0, err
	}

	ctx := context.Background()
	var orgID snowflake.ID
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customer, err := ensureDemoCustomerTx(ctx, tx, node)
		if err != nil {
			return err
		}
		orgID = customer.OrgID

		if err := ensureAgentConfigTx(ctx, tx, orgID); err != nil {
			return err
		}
		return ensureDemoChargesTx(ctx, tx, node, customer)
	})
	if err != nil {
		return 0, err
	}
	return orgID, nil
}

func ensureDemoCustomerTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node) (customerdomain.Customer, error) {
	var customer customerdomain.Customer
	err := tx.WithContext(ctx).Where("email = ?", demoCustomerEmail).First(&customer).Error
	if err == nil {
		return customer, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return customer, err
	}

	now := time.Now().UTC()
	customer = customerdomain.Customer{
		ID:            node.Generate(),
		OrgID:         node.Generate(),
		Name:          demoCustomerName,
		Email:         demoCustomerEmail,
		Phone:         demoCustomerPhone,
		WhatsappPhone: demoCustomerPhone,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := tx.WithContext(ctx).Create(&customer).Error; err != nil {
		return customer, err
	}
	return customer, nil
}

func ensureAgentConfigTx(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) error {
	var existing configdomain.AgentConfig
	err := tx.WithContext(ctx).Where("org_id = ?", orgID).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	now := time.Now().UTC()
	cfg := configdomain.Default(orgID)
	cfg.Enabled = true
	cfg.CreatedAt = now
	cfg.UpdatedAt = now
	return tx.WithContext(ctx).Create(&cfg).Error
}

func ensureDemoChargesTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, customer customerdomain.Customer) error {
	var count int64
	err := tx.WithContext(ctx).
		Model(&chargedomain.Charge{}).
		Where("customer_id = ?", customer.ID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	charges := []chargedomain.Charge{
		{
			ID:          node.Generate(),
			OrgID:       customer.OrgID,
			CustomerID:  customer.ID,
			Description: "Mensalidade plano profissional",
			AmountCents: 19900,
			DueDate:     now.AddDate(0, 0, 5),
			Status:      chargedomain.ChargeStatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			ID:          node.Generate(),
			OrgID:       customer.OrgID,
			CustomerID:  customer.ID,
			Description: "Fatura serviços adicionais",
			AmountCents: 45750,
			DueDate:     now.AddDate(0, 0, -3),
			Status:      chargedomain.ChargeStatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
	for i := range charges {
		if err := tx.WithContext(ctx).Create(&charges[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

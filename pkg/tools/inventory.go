package tools

import (
	"context"
	"fmt"

	"salesagent/pkg/inventory"
)

// InventoryTool reports live stock and price of one product.
type InventoryTool struct {
	adapter inventory.Adapter
}

func NewInventoryTool(a inventory.Adapter) *InventoryTool {
	return &InventoryTool{adapter: a}
}

func (t *InventoryTool) Schema() Schema {
	return Schema{
		Name:        GetCurrentInventory,
		Description: "Get current product availability and pricing from the product database.",
		Required: []Param{
			{Name: "product_name", Type: TypeString, Description: "Name of the product to check"},
		},
	}
}

func (t *InventoryTool) Execute(ctx context.Context, args map[string]any) (Output, error) {
	name := args["product_name"].(string)

	rec, err := t.adapter.Lookup(ctx, name)
	if err != nil {
		return Output{}, fmt.Errorf("Failed to fetch inventory for %s: %w", name, err)
	}

	return Output{
		Payload: map[string]any{"inventory": map[string]any(rec)},
		Summary: "Inventory check complete",
	}, nil
}

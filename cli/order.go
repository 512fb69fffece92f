package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/wbtio/Amal-Center-sub000/checkout"
	"github.com/wbtio/Amal-Center-sub000/domain"
)

func newCouponCmd() *cobra.Command {
	couponCmd := &cobra.Command{
		Use:   "coupon",
		Short: "Manage discount coupons",
	}

	var code, kind, value, minOrder, expires string
	var maxUses int
	var inactive bool
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a coupon",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := decimal.NewFromString(value)
			if err != nil {
				return fmt.Errorf("invalid --value %q: %w", value, err)
			}
			m, err := decimal.NewFromString(minOrder)
			if err != nil {
				return fmt.Errorf("invalid --min-order %q: %w", minOrder, err)
			}
			c := domain.Coupon{
				Code:        code,
				Kind:        domain.CouponKind(strings.ToLower(kind)),
				Value:       v,
				MinOrderIQD: m,
				MaxUses:     maxUses,
				IsActive:    !inactive,
			}
			if expires != "" {
				at, err := time.Parse(time.RFC3339, expires)
				if err != nil {
					return fmt.Errorf("invalid --expires %q: %w", expires, err)
				}
				c.ExpiresAt = &at
			}
			if err := shop.CreateCoupon(cmd.Context(), c); err != nil {
				return err
			}
			c.Code = domain.NormalizeCouponCode(c.Code)
			slog.Info("coupon created", "code", c.Code)
			return printJSON(cmd.OutOrStdout(), c)
		},
	}
	createCmd.Flags().StringVar(&code, "code", "", "coupon code")
	createCmd.Flags().StringVar(&kind, "kind", "percent", "percent|fixed")
	createCmd.Flags().StringVar(&value, "value", "0", "percent or IQD amount")
	createCmd.Flags().StringVar(&minOrder, "min-order", "0", "minimum subtotal in IQD")
	createCmd.Flags().IntVar(&maxUses, "max-uses", 0, "usage limit, 0 for unlimited")
	createCmd.Flags().StringVar(&expires, "expires", "", "expiry time (RFC 3339)")
	createCmd.Flags().BoolVar(&inactive, "inactive", false, "create disabled")

	couponCmd.AddCommand(createCmd)
	return couponCmd
}

func newCheckoutCmd() *cobra.Command {
	var req checkout.Request
	var lat, lng float64
	checkoutCmd := &cobra.Command{
		Use:   "checkout",
		Short: "Place an order for the cart",
		RunE: func(cmd *cobra.Command, args []string) error {
			r := req
			if cmd.Flags().Changed("lat") {
				r.Latitude = &lat
			}
			if cmd.Flags().Changed("lng") {
				r.Longitude = &lng
			}

			svc := checkout.New(cartStore, shop, shop, checkout.WithLogger(slog.Default()))
			start := time.Now()
			res, err := svc.Checkout(cmd.Context(), r)
			if err != nil {
				var se *checkout.StepError
				if errors.As(err, &se) && se.Step != checkout.StatusValidated {
					fmt.Fprintln(cmd.ErrOrStderr(), msg("retry", se.DraftID))
				}
				return localizeError(err)
			}
			slog.Info("checkout completed", "order_id", res.Order.ID, "draft_id", res.DraftID,
				"duration_ms", time.Since(start).Milliseconds())

			for _, f := range res.StockFailures {
				fmt.Fprintln(cmd.ErrOrStderr(), msg("stock_warning", f.ProductID))
			}
			fmt.Fprintln(cmd.ErrOrStderr(), msg("order_placed", res.Order.ID))
			return printJSON(cmd.OutOrStdout(), struct {
				Order domain.Order       `json:"order"`
				Items []domain.OrderItem `json:"items"`
			}{res.Order, res.Items})
		},
	}
	f := checkoutCmd.Flags()
	f.StringVar(&req.CustomerName, "name", "", "customer name")
	f.StringVar(&req.Phone, "phone", "", "phone number")
	f.StringVar(&req.Address, "address", "", "delivery address")
	f.StringVar(&req.Notes, "notes", "", "delivery notes")
	f.StringVar(&req.CouponCode, "coupon", "", "coupon code")
	f.StringVar(&req.DraftID, "draft-id", "", "draft id of an earlier attempt to resume")
	f.Float64Var(&lat, "lat", 0, "delivery latitude")
	f.Float64Var(&lng, "lng", 0, "delivery longitude")
	return checkoutCmd
}

func newOrderCmd() *cobra.Command {
	orderCmd := &cobra.Command{
		Use:   "order",
		Short: "Manage orders",
	}

	var status, output string
	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List orders, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := shop.ListOrders(cmd.Context(), domain.OrderFilter{
				Status: domain.OrderStatus(status),
				Limit:  limit,
			})
			if err != nil {
				return err
			}
			if output == "json" {
				return printJSON(cmd.OutOrStdout(), out)
			}
			for _, o := range out {
				fmt.Fprintf(cmd.OutOrStdout(), "%s | %s | %s | %s | %s IQD\n",
					o.ID, o.CreatedAt.Format(time.DateTime), o.Status, o.CustomerName, o.TotalIQD)
			}
			return nil
		},
	}
	listCmd.Flags().StringVar(&status, "status", "", "filter by status")
	listCmd.Flags().IntVar(&limit, "limit", 0, "maximum number of orders")
	listCmd.Flags().StringVar(&output, "output", "", "output format")

	getCmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show an order with its items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, items, err := shop.GetOrder(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), struct {
				Order domain.Order       `json:"order"`
				Items []domain.OrderItem `json:"items"`
			}{o, items})
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Move an order to a new status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			next := domain.OrderStatus(strings.ToLower(args[1]))
			if err := shop.UpdateOrderStatus(cmd.Context(), args[0], next); err != nil {
				slog.Error("status update failed", "order_id", args[0], "status", next, "error", err)
				return err
			}
			slog.Info("order status updated", "order_id", args[0], "status", next)
			fmt.Fprintln(cmd.OutOrStdout(), next)
			return nil
		},
	}

	orderCmd.AddCommand(listCmd, getCmd, statusCmd)
	return orderCmd
}

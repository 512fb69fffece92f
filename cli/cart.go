package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wbtio/Amal-Center-sub000/domain"
)

func newCartCmd() *cobra.Command {
	cartCmd := &cobra.Command{
		Use:   "cart",
		Short: "Work with the shopping cart",
	}

	var quantity int
	addCmd := &cobra.Command{
		Use:   "add <product-id>",
		Short: "Add a product to the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := shop.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !p.IsActive {
				return localizeError(domain.NewProductUnavailableError(p.ID))
			}
			if err := cartStore.AddItem(p, quantity); err != nil {
				return localizeError(err)
			}
			return showCart(cmd)
		},
	}
	addCmd.Flags().IntVar(&quantity, "quantity", 1, "quantity to add")

	removeCmd := &cobra.Command{
		Use:   "remove <product-id>",
		Short: "Remove a product from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cartStore.RemoveItem(args[0])
			return showCart(cmd)
		},
	}

	updateCmd := &cobra.Command{
		Use:   "update <product-id> <quantity>",
		Short: "Set the quantity of a cart line; 0 removes it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("quantity must be a whole number: %q", args[1])
			}
			if err := cartStore.UpdateQuantity(args[0], q); err != nil {
				return localizeError(err)
			}
			return showCart(cmd)
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		RunE: func(cmd *cobra.Command, args []string) error {
			cartStore.ClearCart()
			return showCart(cmd)
		},
	}

	var output string
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the cart",
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "json" {
				return printJSON(cmd.OutOrStdout(), cartStore.Snapshot())
			}
			return showCart(cmd)
		},
	}
	showCmd.Flags().StringVar(&output, "output", "", "output format")

	qtyCmd := &cobra.Command{
		Use:   "qty <product-id>",
		Short: "Print the quantity of a product in the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), cartStore.ItemQuantity(args[0]))
			return nil
		},
	}

	cartCmd.AddCommand(addCmd, removeCmd, updateCmd, clearCmd, showCmd, qtyCmd)
	return cartCmd
}

func showCart(cmd *cobra.Command) error {
	w := cmd.OutOrStdout()
	lines := cartStore.Lines()
	if len(lines) == 0 {
		fmt.Fprintln(w, msg("empty_cart"))
		return nil
	}
	for _, l := range lines {
		fmt.Fprintf(w, "%s | %s | x%d | %s IQD | %s USD\n",
			l.ProductID, l.Name(locale), l.Quantity, l.PriceIQD, l.PriceUSD.StringFixed(2))
	}
	t := cartStore.Totals()
	fmt.Fprintf(w, "%s: %d | %s: %s IQD | %s USD\n",
		msg("items"), t.Items, msg("total"), t.IQD, t.USD.StringFixed(2))
	return nil
}

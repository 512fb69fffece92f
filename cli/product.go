package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/wbtio/Amal-Center-sub000/domain"
)

// productFlags are shared by create and update.
type productFlags struct {
	nameAr, nameEn     string
	priceIQD, priceUSD string
	image, category    string
	stock              int
	inactive           bool
}

func (f *productFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.nameAr, "name-ar", "", "arabic name")
	cmd.Flags().StringVar(&f.nameEn, "name-en", "", "english name")
	cmd.Flags().StringVar(&f.priceIQD, "price-iqd", "0", "unit price in dinars")
	cmd.Flags().StringVar(&f.priceUSD, "price-usd", "0", "unit price in dollars")
	cmd.Flags().IntVar(&f.stock, "stock", 0, "stock quantity")
	cmd.Flags().StringVar(&f.image, "image", "", "image url")
	cmd.Flags().StringVar(&f.category, "category", "", "category")
	cmd.Flags().BoolVar(&f.inactive, "inactive", false, "hide from the storefront")
}

// apply copies the flags the user set onto p.
func (f *productFlags) apply(cmd *cobra.Command, p *domain.Product) error {
	changed := cmd.Flags().Changed
	if changed("name-ar") {
		p.NameAr = f.nameAr
	}
	if changed("name-en") {
		p.NameEn = f.nameEn
	}
	if changed("price-iqd") {
		d, err := parseMoney("price-iqd", f.priceIQD)
		if err != nil {
			return err
		}
		p.PriceIQD = d
	}
	if changed("price-usd") {
		d, err := parseMoney("price-usd", f.priceUSD)
		if err != nil {
			return err
		}
		p.PriceUSD = d
	}
	if changed("stock") {
		p.StockQuantity = f.stock
	}
	if changed("image") {
		p.ImageURL = f.image
	}
	if changed("category") {
		p.Category = f.category
	}
	if changed("inactive") {
		p.IsActive = !f.inactive
	}
	return nil
}

func parseMoney(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, domain.NewInvalidProductError(field, "not a number", s)
	}
	return d, nil
}

func newProductCmd() *cobra.Command {
	productCmd := &cobra.Command{
		Use:   "product",
		Short: "Manage the catalog",
	}

	// create
	var id string
	var cf productFlags
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a product",
		RunE: func(cmd *cobra.Command, args []string) error {
			pid := id
			if pid == "" {
				pid = uuid.NewString()
			}
			p := domain.Product{ID: pid, PriceIQD: decimal.Zero, PriceUSD: decimal.Zero, IsActive: true}
			if err := cf.apply(cmd, &p); err != nil {
				return err
			}
			start := time.Now()
			if err := shop.Create(cmd.Context(), p); err != nil {
				slog.Error("create failed", "product_id", p.ID, "error", err)
				return err
			}
			slog.Info("product created", "product_id", p.ID, "duration_ms", time.Since(start).Milliseconds())
			return printJSON(cmd.OutOrStdout(), p)
		},
	}
	createCmd.Flags().StringVar(&id, "id", "", "product id (generated when empty)")
	cf.register(createCmd)

	// get
	getCmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Get product by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := shop.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		},
	}

	// update
	var uf productFlags
	updateCmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			p, err := shop.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			if err := uf.apply(cmd, &p); err != nil {
				return err
			}
			if err := domain.ValidateProduct(p); err != nil {
				return err
			}

			start := time.Now()
			if err := shop.Update(cmd.Context(), id, p); err != nil {
				slog.Error("update failed", "product_id", id, "error", err)
				return err
			}
			slog.Info("product updated", "product_id", id, "duration_ms", time.Since(start).Milliseconds())
			return printJSON(cmd.OutOrStdout(), p)
		},
	}
	uf.register(updateCmd)

	// list
	var lCategory, lSearch, lSort, lOrder, lOutput, lMin, lMax string
	var lActive bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List products",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := domain.ListFilter{
				Category:   lCategory,
				ActiveOnly: lActive,
				Search:     lSearch,
				SortBy:     lSort,
				Order:      lOrder,
			}
			if cmd.Flags().Changed("min-price") {
				d, err := parseMoney("min-price", lMin)
				if err != nil {
					return err
				}
				filter.MinPrice = &d
			}
			if cmd.Flags().Changed("max-price") {
				d, err := parseMoney("max-price", lMax)
				if err != nil {
					return err
				}
				filter.MaxPrice = &d
			}
			out, err := shop.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if lOutput == "json" {
				return printJSON(cmd.OutOrStdout(), out)
			}
			for _, p := range out {
				fmt.Fprintf(cmd.OutOrStdout(), "%s | %s | %s IQD | %s USD | %d | %s\n",
					p.ID, p.Name(locale), p.PriceIQD, p.PriceUSD.StringFixed(2), p.StockQuantity, p.Category)
			}
			return nil
		},
	}
	listCmd.Flags().StringVar(&lCategory, "category", "", "category")
	listCmd.Flags().StringVar(&lMin, "min-price", "", "min price (IQD)")
	listCmd.Flags().StringVar(&lMax, "max-price", "", "max price (IQD)")
	listCmd.Flags().BoolVar(&lActive, "active-only", false, "only active products")
	listCmd.Flags().StringVar(&lSearch, "search", "", "search both names")
	listCmd.Flags().StringVar(&lSort, "sort-by", "", "sort field: name|price|stock")
	listCmd.Flags().StringVar(&lOrder, "order", "asc", "sort order")
	listCmd.Flags().StringVar(&lOutput, "output", "", "output format")

	// delete
	var force bool
	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				fmt.Fprintf(cmd.OutOrStdout(), "Delete %s? (y/N): ", args[0])
				var resp string
				if _, err := fmt.Fscanln(cmd.InOrStdin(), &resp); err != nil || (resp != "y" && resp != "Y") {
					fmt.Fprintln(cmd.OutOrStdout(), "aborted")
					return nil
				}
			}
			if err := shop.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "deleted")
			return nil
		},
	}
	deleteCmd.Flags().BoolVar(&force, "force", false, "skip confirmation")

	// import
	var importFile string
	importCmd := &cobra.Command{
		Use:   "import --file <file>",
		Short: "Import products from a JSON array or NDJSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			if importFile == "" {
				return errors.New("--file required")
			}
			b, err := os.ReadFile(importFile)
			if err != nil {
				return err
			}
			products, err := parseProducts(b)
			if err != nil {
				return err
			}
			start := time.Now()
			err = shop.BulkImport(cmd.Context(), products)
			slog.Info("import finished", "products", len(products), "duration_ms", time.Since(start).Milliseconds())
			return err
		},
	}
	importCmd.Flags().StringVar(&importFile, "file", "", "input file")

	// export
	var exportFile, exportCategory string
	exportCmd := &cobra.Command{
		Use:   "export --file <file>",
		Short: "Export products to JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			if exportFile == "" {
				return errors.New("--file required")
			}
			out, err := shop.List(cmd.Context(), domain.ListFilter{Category: exportCategory})
			if err != nil {
				return err
			}
			b, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			return os.WriteFile(exportFile, b, 0o644)
		},
	}
	exportCmd.Flags().StringVar(&exportFile, "file", "", "output file")
	exportCmd.Flags().StringVar(&exportCategory, "category", "", "category")

	productCmd.AddCommand(createCmd, getCmd, updateCmd, listCmd, deleteCmd, importCmd, exportCmd)
	return productCmd
}

// parseProducts accepts a JSON array, NDJSON, or a single object.
// Products without an is_active field are imported as active.
func parseProducts(b []byte) ([]domain.Product, error) {
	btrim := bytes.TrimSpace(b)
	if len(btrim) == 0 {
		return nil, errors.New("empty file")
	}

	type importProduct struct {
		domain.Product
		IsActive *bool `json:"is_active"`
	}
	convert := func(ip importProduct) domain.Product {
		p := ip.Product
		p.IsActive = ip.IsActive == nil || *ip.IsActive
		return p
	}

	var products []domain.Product
	if btrim[0] == '[' {
		var in []importProduct
		if err := json.Unmarshal(btrim, &in); err != nil {
			return nil, err
		}
		for _, ip := range in {
			products = append(products, convert(ip))
		}
		return products, nil
	}

	scanner := bufio.NewScanner(bytes.NewReader(btrim))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var ip importProduct
		if err := json.Unmarshal(line, &ip); err != nil {
			return nil, err
		}
		products = append(products, convert(ip))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

package cli

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"tradebooks/internal/app"
)

// Run executes a one-shot CLI command and exits.
// args is os.Args[1:] — the first element is the subcommand name.
func Run(ctx context.Context, svc app.ApplicationService, args []string) {
	switch args[0] {
	case "accounts", "acc":
		result, err := svc.ListAccounts(ctx)
		if err != nil {
			log.Fatalf("Failed to list accounts: %v", err)
		}
		printAccounts(result)

	case "balance", "bal":
		if len(args) < 2 {
			log.Fatal("Usage: app balance <account-id>")
		}
		result, err := svc.GetAccount(ctx, mustID(args[1]))
		if err != nil {
			log.Fatalf("Failed to get account: %v", err)
		}
		a := result.Account
		fmt.Printf("%s [%s]: %s\n", a.Name, a.Category, a.CurrentBalance.StringFixed(2))

	case "statement", "st":
		if len(args) < 2 {
			log.Fatal("Usage: app statement <account-id> [from] [to]")
		}
		from, to := "", ""
		if len(args) > 2 {
			from = args[2]
		}
		if len(args) > 3 {
			to = args[3]
		}
		result, err := svc.GetStatement(ctx, mustID(args[1]), from, to)
		if err != nil {
			log.Fatalf("Failed to get statement: %v", err)
		}
		printStatement(result)

	case "credit":
		if len(args) < 3 {
			log.Fatal("Usage: app credit <account-id> <amount> [note]")
		}
		note := ""
		if len(args) > 3 {
			note = strings.Join(args[3:], " ")
		}
		result, err := svc.AddCredit(ctx, app.AddCreditRequest{
			AccountID: mustID(args[1]),
			Amount:    mustAmount(args[2]),
			Actor:     "cli",
			Note:      note,
		})
		if err != nil {
			log.Fatalf("Failed to add credit: %v", err)
		}
		fmt.Printf("Credit recorded. New balance: %s\n", result.Account.CurrentBalance.StringFixed(2))

	case "expense", "exp":
		if len(args) < 3 {
			log.Fatal("Usage: app expense <account-id> <amount> [description]")
		}
		description := ""
		if len(args) > 3 {
			description = strings.Join(args[3:], " ")
		}
		result, err := svc.AddExpense(ctx, app.AddExpenseRequest{
			AccountID:   mustID(args[1]),
			Amount:      mustAmount(args[2]),
			Description: description,
		})
		if err != nil {
			log.Fatalf("Failed to add expense: %v", err)
		}
		fmt.Printf("Expense recorded. New balance: %s\n", result.Account.CurrentBalance.StringFixed(2))

	case "transfer", "tr":
		if len(args) < 4 {
			log.Fatal("Usage: app transfer <source-id> <destination-id> <amount>")
		}
		result, err := svc.AddTransfer(ctx, app.AddTransferRequest{
			SourceAccountID:      mustID(args[1]),
			DestinationAccountID: mustID(args[2]),
			Amount:               mustAmount(args[3]),
		})
		if err != nil {
			log.Fatalf("Failed to add transfer: %v", err)
		}
		fmt.Printf("Transfer recorded.\n  %s: %s\n  %s: %s\n",
			result.Source.Name, result.Source.CurrentBalance.StringFixed(2),
			result.Destination.Name, result.Destination.CurrentBalance.StringFixed(2))

	case "delete-tx":
		if len(args) < 3 {
			log.Fatal("Usage: app delete-tx <credit|expense|transfer> <id>")
		}
		result, err := svc.DeleteTransaction(ctx, args[1], mustID(args[2]))
		if err != nil {
			log.Fatalf("Failed to delete transaction: %v", err)
		}
		for _, a := range result.Accounts {
			fmt.Printf("%s: %s\n", a.Name, a.CurrentBalance.StringFixed(2))
		}

	case "pl":
		cutoff := ""
		if len(args) > 1 {
			cutoff = args[1]
		}
		result, err := svc.ComputePL(ctx, cutoff)
		if err != nil {
			log.Fatalf("Failed to compute P/L: %v", err)
		}
		c := result.Components
		fmt.Println()
		fmt.Println(strings.Repeat("=", 48))
		fmt.Printf("  PROFIT / LOSS at %s\n", result.Cutoff)
		fmt.Println(strings.Repeat("=", 48))
		fmt.Printf("  %-24s %18s\n", "Cash level", c.CashLevel.StringFixed(2))
		fmt.Printf("  %-24s %18s\n", "Receivables", c.Receivables.StringFixed(2))
		fmt.Printf("  %-24s %18s\n", "POS stock", c.PointOfSaleStock.StringFixed(2))
		fmt.Printf("  %-24s %18s\n", "Cash burn", c.CashBurn.StringFixed(2))
		fmt.Printf("  %-24s %18s\n", "Stock variation", c.StockVariation.StringFixed(2))
		fmt.Printf("  %-24s %18s\n", "Partner deliveries", c.PartnerDeliveries.StringFixed(2))
		fmt.Printf("  %-24s %18s\n", "Charges prorated", c.ChargesProrated.StringFixed(2))
		fmt.Println(strings.Repeat("-", 48))
		fmt.Printf("  %-24s %18s\n", "PL base", result.PLBase.StringFixed(2))
		fmt.Printf("  %-24s %18s\n", "PL gross", result.PLGross.StringFixed(2))
		fmt.Printf("  %-24s %18s\n", "PL final", result.PLFinal.StringFixed(2))
		fmt.Println(strings.Repeat("=", 48))

	case "cash":
		result, err := svc.AvailableCash(ctx)
		if err != nil {
			log.Fatalf("Failed to compute available cash: %v", err)
		}
		fmt.Printf("Available cash: %s %s\n", result.Amount.StringFixed(2), result.Currency)

	case "reconcile", "rec":
		report, err := svc.ReconcileAll(ctx)
		if err != nil {
			log.Fatalf("Reconciliation failed: %v", err)
		}
		fmt.Printf("Reconciled %d accounts, corrected %d.\n", report.AccountsChecked, report.AccountsCorrected)

	case "backup":
		if len(args) < 2 {
			log.Fatal("Usage: app backup <account-id>")
		}
		result, err := svc.BackupAccount(ctx, mustID(args[1]))
		if err != nil {
			log.Fatalf("Backup failed: %v", err)
		}
		fmt.Printf("Backup written: %s\n", result.BackupID)

	case "restore":
		if len(args) < 2 {
			log.Fatal("Usage: app restore <backup-id>")
		}
		if err := svc.RestoreBackup(ctx, args[1]); err != nil {
			log.Fatalf("Restore failed: %v", err)
		}
		fmt.Println("Backup restored.")

	case "delete-account":
		if len(args) < 4 {
			log.Fatal("Usage: app delete-account <account-id> <actor> <reason>")
		}
		result, err := svc.DeleteAccount(ctx, app.DestructiveRequest{
			AccountID: mustID(args[1]),
			Actor:     args[2],
			Reason:    strings.Join(args[3:], " "),
		})
		if err != nil {
			log.Fatalf("Delete failed: %v", err)
		}
		if result.AlreadyGone {
			fmt.Println("Account already deleted.")
		} else {
			fmt.Printf("Account %q deleted. Backup: %s\n", result.AccountName, result.BackupID)
		}

	case "empty-account":
		if len(args) < 4 {
			log.Fatal("Usage: app empty-account <account-id> <actor> <reason>")
		}
		result, err := svc.EmptyAccount(ctx, app.DestructiveRequest{
			AccountID: mustID(args[1]),
			Actor:     args[2],
			Reason:    strings.Join(args[3:], " "),
		})
		if err != nil {
			log.Fatalf("Empty failed: %v", err)
		}
		fmt.Printf("Account %q emptied. Backup: %s\n", result.AccountName, result.BackupID)

	default:
		log.Fatalf("Unknown command: %s\nAvailable: accounts, balance, statement, credit, expense, transfer, delete-tx, pl, cash, reconcile, backup, restore, delete-account, empty-account", args[0])
	}
}

func printAccounts(result *app.AccountListResult) {
	fmt.Println()
	fmt.Printf("%-5s %-28s %-16s %18s %7s\n", "ID", "NAME", "CATEGORY", "BALANCE", "ACTIVE")
	fmt.Println(strings.Repeat("-", 78))
	for _, a := range result.Accounts {
		active := "yes"
		if !a.Active {
			active = "no"
		}
		fmt.Printf("%-5d %-28s %-16s %18s %7s\n", a.ID, a.Name, a.Category, a.CurrentBalance.StringFixed(2), active)
	}
	fmt.Println(strings.Repeat("-", 78))
}

func printStatement(result *app.StatementResult) {
	fmt.Println()
	fmt.Printf("%-12s %-10s %-32s %15s %15s\n", "DATE", "KIND", "LABEL", "AMOUNT", "BALANCE")
	fmt.Println(strings.Repeat("-", 90))
	for _, l := range result.Lines {
		fmt.Printf("%-12s %-10s %-32s %15s %15s\n",
			l.EntryDate, l.Kind, l.Label,
			l.Amount.StringFixed(2), l.RunningBalance.StringFixed(2))
	}
	fmt.Println(strings.Repeat("-", 90))
}

func mustID(s string) int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		log.Fatalf("Invalid id %q", s)
	}
	return id
}

func mustAmount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		log.Fatalf("Invalid amount %q", s)
	}
	return d
}

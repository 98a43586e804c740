package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"
)

var errUserRequired = errors.New("--user is required (or set BUDGET_USER)")

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow, color.Bold)
	red    = color.New(color.FgRed)
	faint  = color.New(color.Faint)
)

// header prints a formatted header
func header(text string) {
	line := strings.Repeat("=", 60)
	green.Printf("\n%s\n", line)
	green.Printf("%s\n", text)
	green.Printf("%s\n\n", line)
}

func printSuccess(text string) {
	green.Printf("  → %s\n", text)
}

func printInfo(text string) {
	fmt.Printf("  → %s\n", text)
}

func printWarning(text string) {
	yellow.Printf("  ⚠ %s\n", text)
}

func printError(text string) {
	red.Printf("Error: %s\n", text)
}

// money prints an amount with two decimals, red when negative.
func money(d decimal.Decimal) string {
	s := d.StringFixed(2)
	if d.IsNegative() {
		return red.Sprint(s)
	}
	return s
}

// signed is money for values where below zero is the good direction.
func signed(d decimal.Decimal, favorable bool) string {
	s := d.StringFixed(2)
	if favorable {
		return green.Sprint(s)
	}
	return red.Sprint(s)
}

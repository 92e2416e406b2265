// Package monzo implements core.BankClient against the Monzo REST API.
package monzo

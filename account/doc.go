// Package account holds the account record, its kind and status enums, and
// the state-machine transitions between UNVERIFIED, ACTIVE and LOCKED.
//
// Administrative disablement is an orthogonal flag: an account keeps its
// stored status while disabled and reports INACTIVE through
// [Account.EffectiveStatus].
package account

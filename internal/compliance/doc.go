// Package compliance implements acknowledgment tracking, retention
// policies, report generation and audit/access reads.
//
// # Acknowledgments
//
// Acknowledge records that a user has seen a message. The
// acknowledgment, its audit entry and its access log commit together;
// a duplicate writes nothing and surfaces store.ErrDuplicateAck.
//
// # Role Gates
//
// Reads of the audit trail, access logs and reports require a
// compliance-reader role (admin, compliance_officer, auditor).
// Creating or updating retention policies and generating reports
// require a compliance-manager role (admin, compliance_officer).
// Violations return ErrForbidden.
//
// # LogAccess
//
// LogAccess records resource access without failing the caller:
// a logging failure is logged and swallowed, never propagated to the
// request that triggered it.
package compliance

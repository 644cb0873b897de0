package authz

import "fmt"

// Store key builders. Keys are flat strings namespaced by prefix; the
// compound keys use the colon-joined tuple that identifies the record.

func assignmentKey(user string) string {
	return "role_asn:" + user
}

func delegationKey(delegator, delegatee string) string {
	return "delegate:" + delegator + ":" + delegatee
}

func scopedDelegationKey(delegator, delegatee string) string {
	return "dlg_scope:" + delegator + ":" + delegatee
}

func delegatorIndexKey(delegatee string) string {
	return "deleg_idx:" + delegatee
}

func groupKey(name string) string {
	return "acl_grp:" + name
}

func userGroupsKey(user string) string {
	return "usr_grps:" + user
}

func policyKey(id string) string {
	return "acc_pol:" + id
}

const policyIndexKey = "acc_pol_idx"

func credentialKey(user string) string {
	return "user_cred:" + user
}

func sensitivityKey(recordID uint64) string {
	return fmt.Sprintf("rec_sens:%d", recordID)
}

func consentKey(patient, grantee string) string {
	return "consent:" + patient + ":" + grantee
}

func emergencyKey(id uint64) string {
	return fmt.Sprintf("emrg:%d", id)
}

func emergencyPatientIndexKey(patient string) string {
	return "emrg_idx:" + patient
}

const emergencySequenceKey = "emrg_seq"

func emergencyAuditKey(id uint64) string {
	return fmt.Sprintf("emrg_audit:%d", id)
}

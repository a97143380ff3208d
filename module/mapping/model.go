package mapping

// UserMapping 旧系统用户ID → 新系统用户ID 的桥接记录。
// 以 oldUserId 为主键，newUserId/email 可反查；幂等 upsert，从不自动删除。
type UserMapping struct {
	OldUserID   string `json:"oldUserId"`
	NewUserID   string `json:"newUserId"`
	Email       string `json:"email,omitempty"`
	Name        string `json:"name,omitempty"`
	UpdatedAtMS int64  `json:"updatedAtMs"`
}

package queue

// 联系人事件的队列拓扑
const (
	// AuditQueue 审计消费者的队列，绑定全部 contact.* 事件
	AuditQueue       = "contacts.audit"
	AuditBindingKey  = "contact.#"
	AuditConsumerTag = "contact_audit_consumer"
)

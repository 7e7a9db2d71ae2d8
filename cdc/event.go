package cdc

const (
	OperationTypeInsert  = "insert"
	OperationTypeUpdate  = "update"
	OperationTypeReplace = "replace"
	OperationTypeDelete  = "delete"
)

// Event is the envelope emitted for every document change captured from
// the database.
type Event[Document any] struct {
	Offset            int64                        `json:"-"`
	OperationType     string                       `json:"operationType"`
	DocumentKey       DocumentKey                  `json:"documentKey"`
	FullDocument      *Document                    `json:"fullDocument"`
	UpdateDescription *UpdateDescription[Document] `json:"updateDescription"`
}

type DocumentKey struct {
	ID string `json:"_id"`
}

type UpdateDescription[Document any] struct {
	UpdatedFields *Document `json:"updatedFields"`
	RemovedFields []string  `json:"removedFields"`
}

package tasks

import "github.com/gofrs/uuid"

// TaskID is the ID type of a task.
type TaskID string

// NewTaskID mints a fresh task ID.
func NewTaskID() (TaskID, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	return TaskID(id.String()), nil
}

// Task is an asynchronous unit of work.
type Task interface {
	ID() TaskID
	Run() error
}

// Queuer can enqueue and dequeue tasks.
type Queuer interface {
	Enqueue(taskID TaskID) bool
	Working() TaskID
	ListWorking() []TaskID
	Finish(taskID TaskID) bool
	ListFinished() []TaskID
}

// Storer can load and store task data.
type Storer interface {
	Get(taskID TaskID) (Task, bool)
	Put(task Task, taskID TaskID) bool
}

// Signer produces a detached signature over a message. Key handling and
// the signature computation itself live with the keystore collaborator.
type Signer interface {
	Sign(message []byte) (string, error)
}

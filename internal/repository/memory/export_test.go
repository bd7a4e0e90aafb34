package memory

// DropNotification deletes a notification document but leaves the id in the
// recipient's list, reproducing a half-applied removal.
func (db *DB) DropNotification(id string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.notifications, id)
}

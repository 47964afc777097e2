package dashboard

// SampleActivity returns the placeholder feed shown when activity_log is missing,
// empty or unreadable. The returned slice is a fresh copy on every call.
func SampleActivity() []ActivityEntry {
	return []ActivityEntry{
		{Actor: "John Doe", Action: "Added new batch of organic tomatoes", When: "2 hours ago"},
		{Actor: "Jane Smith", Action: "Updated warehouse capacity", When: "5 hours ago"},
		{Actor: "Mike Johnson", Action: "Processed shipment to distribution center", When: "1 day ago"},
	}
}

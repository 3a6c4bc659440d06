package agenda

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/redmonkez12/agenda-api/internal/mongodb"
)

type eventDocument struct {
	ID          string    `bson:"_id"`
	Title       string    `bson:"title"`
	Description *string   `bson:"description,omitempty"`
	From        int64     `bson:"from"`
	To          int64     `bson:"to"`
	Host        string    `bson:"host"`
	PhotoKeys   []string  `bson:"photoKeys"`
	AttendeeIDs []string  `bson:"attendeeIds"`
	CreatedAt   time.Time `bson:"createdAt"`
}

type attendeeDocument struct {
	UserID    string    `bson:"userId"`
	EventID   string    `bson:"eventId"`
	Email     string    `bson:"email"`
	FullName  string    `bson:"fullName"`
	IsGoing   bool      `bson:"isGoing"`
	RemindAt  int64     `bson:"remindAt"`
	CreatedAt time.Time `bson:"createdAt"`
}

type taskDocument struct {
	ID          string    `bson:"_id"`
	Title       string    `bson:"title"`
	Description *string   `bson:"description,omitempty"`
	UserID      string    `bson:"userId"`
	Time        int64     `bson:"time"`
	RemindAt    int64     `bson:"remindAt"`
	IsDone      bool      `bson:"isDone"`
	CreatedAt   time.Time `bson:"createdAt"`
}

type reminderDocument struct {
	ID          string    `bson:"_id"`
	Title       string    `bson:"title"`
	Description *string   `bson:"description,omitempty"`
	UserID      string    `bson:"userId"`
	Time        int64     `bson:"time"`
	RemindAt    int64     `bson:"remindAt"`
	CreatedAt   time.Time `bson:"createdAt"`
}

// NewMongoRepositories returns repositories backed by the collections of db.
func NewMongoRepositories(db *mongo.Database) Repositories {
	return Repositories{
		Events:    &MongoEventRepository{coll: db.Collection(mongodb.CollectionEvents)},
		Attendees: &MongoAttendeeRepository{coll: db.Collection(mongodb.CollectionAttendees)},
		Tasks:     &MongoTaskRepository{coll: db.Collection(mongodb.CollectionTasks)},
		Reminders: &MongoReminderRepository{coll: db.Collection(mongodb.CollectionReminders)},
	}
}

// MongoEventRepository stores events in the "event" collection.
type MongoEventRepository struct {
	coll *mongo.Collection
}

func (r *MongoEventRepository) Insert(ctx context.Context, e *Event) error {
	if _, err := r.coll.InsertOne(ctx, toEventDocument(e)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrEventExists
		}
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (r *MongoEventRepository) Get(ctx context.Context, id string) (*Event, error) {
	var doc eventDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	e := fromEventDocument(doc)
	return &e, nil
}

func (r *MongoEventRepository) Replace(ctx context.Context, e *Event) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": e.ID}, bson.M{"$set": bson.M{
		"title":       e.Title,
		"description": e.Description,
		"from":        e.From,
		"to":          e.To,
		"photoKeys":   nonNil(e.PhotoKeys),
		"attendeeIds": nonNil(e.AttendeeIDs),
	}})
	if err != nil {
		return fmt.Errorf("failed to replace event: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrEventNotFound
	}
	return nil
}

func (r *MongoEventRepository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrEventNotFound
	}
	return nil
}

func (r *MongoEventRepository) ListForUser(ctx context.Context, userID string, window *Window) ([]Event, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"host": userID},
		bson.M{"attendeeIds": userID},
	}}
	if window != nil {
		filter["from"] = bson.M{"$gte": window.Start, "$lt": window.End}
	}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "from", Value: 1}}))
}

func (r *MongoEventRepository) RemoveAttendee(ctx context.Context, eventID, userID string) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": eventID},
		bson.M{"$pull": bson.M{"attendeeIds": userID}},
	)
	if err != nil {
		return fmt.Errorf("failed to remove attendee from event: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrEventNotFound
	}
	return nil
}

func (r *MongoEventRepository) ListCreatedBefore(ctx context.Context, cutoff time.Time) ([]Event, error) {
	return r.find(ctx, bson.M{"createdAt": bson.M{"$lt": cutoff}})
}

func (r *MongoEventRepository) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return deleteDocumentsBefore(ctx, r.coll, cutoff)
}

func (r *MongoEventRepository) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]Event, error) {
	cursor, err := r.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to find events: %w", err)
	}

	var docs []eventDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode events: %w", err)
	}

	events := make([]Event, 0, len(docs))
	for _, doc := range docs {
		events = append(events, fromEventDocument(doc))
	}
	return events, nil
}

// MongoAttendeeRepository stores attendee rows in the "attendee" collection.
type MongoAttendeeRepository struct {
	coll *mongo.Collection
}

func (r *MongoAttendeeRepository) InsertMany(ctx context.Context, attendees []Attendee) error {
	if len(attendees) == 0 {
		return nil
	}

	docs := make([]any, 0, len(attendees))
	for _, a := range attendees {
		docs = append(docs, attendeeDocument(a))
	}
	if _, err := r.coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert attendees: %w", err)
	}
	return nil
}

func (r *MongoAttendeeRepository) Get(ctx context.Context, eventID, userID string) (*Attendee, error) {
	var doc attendeeDocument
	err := r.coll.FindOne(ctx, bson.M{"eventId": eventID, "userId": userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrAttendeeNotFound
		}
		return nil, fmt.Errorf("failed to get attendee: %w", err)
	}
	a := Attendee(doc)
	return &a, nil
}

func (r *MongoAttendeeRepository) ListByEvent(ctx context.Context, eventID string) ([]Attendee, error) {
	return r.ListByEvents(ctx, []string{eventID})
}

func (r *MongoAttendeeRepository) ListByEvents(ctx context.Context, eventIDs []string) ([]Attendee, error) {
	if len(eventIDs) == 0 {
		return []Attendee{}, nil
	}

	cursor, err := r.coll.Find(ctx,
		bson.M{"eventId": bson.M{"$in": eventIDs}},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find attendees: %w", err)
	}

	var docs []attendeeDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode attendees: %w", err)
	}

	attendees := make([]Attendee, 0, len(docs))
	for _, doc := range docs {
		attendees = append(attendees, Attendee(doc))
	}
	return attendees, nil
}

func (r *MongoAttendeeRepository) UpdateStatus(ctx context.Context, eventID, userID string, isGoing bool, remindAt int64) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"eventId": eventID, "userId": userID},
		bson.M{"$set": bson.M{"isGoing": isGoing, "remindAt": remindAt}},
	)
	if err != nil {
		return fmt.Errorf("failed to update attendee: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrAttendeeNotFound
	}
	return nil
}

func (r *MongoAttendeeRepository) DeleteMany(ctx context.Context, eventID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}

	_, err := r.coll.DeleteMany(ctx, bson.M{"eventId": eventID, "userId": bson.M{"$in": userIDs}})
	if err != nil {
		return fmt.Errorf("failed to delete attendees: %w", err)
	}
	return nil
}

func (r *MongoAttendeeRepository) DeleteByEvent(ctx context.Context, eventID string) error {
	if _, err := r.coll.DeleteMany(ctx, bson.M{"eventId": eventID}); err != nil {
		return fmt.Errorf("failed to delete event attendees: %w", err)
	}
	return nil
}

func (r *MongoAttendeeRepository) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return deleteDocumentsBefore(ctx, r.coll, cutoff)
}

// MongoTaskRepository stores tasks in the "task" collection.
type MongoTaskRepository struct {
	coll *mongo.Collection
}

func (r *MongoTaskRepository) Insert(ctx context.Context, t *Task) error {
	if _, err := r.coll.InsertOne(ctx, taskDocument(*t)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrTaskExists
		}
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

func (r *MongoTaskRepository) Get(ctx context.Context, id string) (*Task, error) {
	var doc taskDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	t := Task(doc)
	return &t, nil
}

func (r *MongoTaskRepository) Replace(ctx context.Context, t *Task) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": t.ID}, bson.M{"$set": bson.M{
		"title":       t.Title,
		"description": t.Description,
		"time":        t.Time,
		"remindAt":    t.RemindAt,
		"isDone":      t.IsDone,
	}})
	if err != nil {
		return fmt.Errorf("failed to replace task: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (r *MongoTaskRepository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (r *MongoTaskRepository) ListForUser(ctx context.Context, userID string, window *Window) ([]Task, error) {
	cursor, err := r.coll.Find(ctx, ownedFilter(userID, window), options.Find().SetSort(bson.D{{Key: "time", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find tasks: %w", err)
	}

	var docs []taskDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %w", err)
	}

	tasks := make([]Task, 0, len(docs))
	for _, doc := range docs {
		tasks = append(tasks, Task(doc))
	}
	return tasks, nil
}

func (r *MongoTaskRepository) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return deleteDocumentsBefore(ctx, r.coll, cutoff)
}

// MongoReminderRepository stores reminders in the "reminder" collection.
type MongoReminderRepository struct {
	coll *mongo.Collection
}

func (r *MongoReminderRepository) Insert(ctx context.Context, rem *Reminder) error {
	if _, err := r.coll.InsertOne(ctx, reminderDocument(*rem)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrReminderExists
		}
		return fmt.Errorf("failed to insert reminder: %w", err)
	}
	return nil
}

func (r *MongoReminderRepository) Get(ctx context.Context, id string) (*Reminder, error) {
	var doc reminderDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrReminderNotFound
		}
		return nil, fmt.Errorf("failed to get reminder: %w", err)
	}
	rem := Reminder(doc)
	return &rem, nil
}

func (r *MongoReminderRepository) Replace(ctx context.Context, rem *Reminder) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": rem.ID}, bson.M{"$set": bson.M{
		"title":       rem.Title,
		"description": rem.Description,
		"time":        rem.Time,
		"remindAt":    rem.RemindAt,
	}})
	if err != nil {
		return fmt.Errorf("failed to replace reminder: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrReminderNotFound
	}
	return nil
}

func (r *MongoReminderRepository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete reminder: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrReminderNotFound
	}
	return nil
}

func (r *MongoReminderRepository) ListForUser(ctx context.Context, userID string, window *Window) ([]Reminder, error) {
	cursor, err := r.coll.Find(ctx, ownedFilter(userID, window), options.Find().SetSort(bson.D{{Key: "time", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find reminders: %w", err)
	}

	var docs []reminderDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode reminders: %w", err)
	}

	reminders := make([]Reminder, 0, len(docs))
	for _, doc := range docs {
		reminders = append(reminders, Reminder(doc))
	}
	return reminders, nil
}

func (r *MongoReminderRepository) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return deleteDocumentsBefore(ctx, r.coll, cutoff)
}

func ownedFilter(userID string, window *Window) bson.M {
	filter := bson.M{"userId": userID}
	if window != nil {
		filter["time"] = bson.M{"$gte": window.Start, "$lt": window.End}
	}
	return filter
}

func deleteDocumentsBefore(ctx context.Context, coll *mongo.Collection, cutoff time.Time) (int64, error) {
	res, err := coll.DeleteMany(ctx, bson.M{"createdAt": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete old documents from %s: %w", coll.Name(), err)
	}
	return res.DeletedCount, nil
}

func toEventDocument(e *Event) eventDocument {
	return eventDocument{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		From:        e.From,
		To:          e.To,
		Host:        e.Host,
		PhotoKeys:   nonNil(e.PhotoKeys),
		AttendeeIDs: nonNil(e.AttendeeIDs),
		CreatedAt:   e.CreatedAt,
	}
}

func fromEventDocument(doc eventDocument) Event {
	return Event{
		ID:          doc.ID,
		Title:       doc.Title,
		Description: doc.Description,
		From:        doc.From,
		To:          doc.To,
		Host:        doc.Host,
		PhotoKeys:   nonNil(doc.PhotoKeys),
		AttendeeIDs: nonNil(doc.AttendeeIDs),
		CreatedAt:   doc.CreatedAt,
	}
}

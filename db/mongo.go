package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"food-whatsapp/models"
)

// caseInsensitive makes name comparisons ignore case on the menu collection.
var caseInsensitive = &options.Collation{Locale: "en", Strength: 2}

// Mongo stores every record as a document; order items are embedded.
type Mongo struct {
	client    *mongo.Client
	customers *mongo.Collection
	menu      *mongo.Collection
	rates     *mongo.Collection
	orders    *mongo.Collection
	proofs    *mongo.Collection
	outbound  *mongo.Collection
}

// OpenMongo connects, pings and ensures the indexes the queries rely on.
func OpenMongo(ctx context.Context, uri, database string, log *zap.Logger) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	d := client.Database(database)
	m := &Mongo{
		client:    client,
		customers: d.Collection("customers"),
		menu:      d.Collection("menu_items"),
		rates:     d.Collection("delivery_rates"),
		orders:    d.Collection("orders"),
		proofs:    d.Collection("payment_proofs"),
		outbound:  d.Collection("outbound_messages"),
	}
	if err := m.ensureIndexes(ctx, log); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return m, nil
}

func (m *Mongo) ensureIndexes(ctx context.Context, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	specs := []struct {
		coll  *mongo.Collection
		model mongo.IndexModel
	}{
		{m.menu, mongo.IndexModel{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetName("name_unique_ci").SetUnique(true).SetCollation(caseInsensitive),
		}},
		{m.customers, mongo.IndexModel{
			Keys:    bson.D{{Key: "lastSeen", Value: -1}},
			Options: options.Index().SetName("lastSeen_desc"),
		}},
		{m.orders, mongo.IndexModel{
			Keys:    bson.D{{Key: "customerPhone", Value: 1}, {Key: "status", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("customer_status_created"),
		}},
		{m.outbound, mongo.IndexModel{
			Keys:    bson.D{{Key: "orderId", Value: 1}, {Key: "status", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("order_status_created"),
		}},
	}
	for _, s := range specs {
		name, err := s.coll.Indexes().CreateOne(ctx, s.model)
		if err != nil {
			return fmt.Errorf("create index on %s: %w", s.coll.Name(), err)
		}
		log.Debug("mongo index ensured", zap.String("collection", s.coll.Name()), zap.String("index", name))
	}
	return nil
}

func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func mongoNotFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.ErrNotFound
	}
	return err
}

func (m *Mongo) GetCustomer(ctx context.Context, phone string) (*models.Customer, error) {
	var c models.Customer
	if err := m.customers.FindOne(ctx, bson.M{"_id": phone}).Decode(&c); err != nil {
		return nil, mongoNotFound(err)
	}
	return &c, nil
}

func (m *Mongo) InsertCustomer(ctx context.Context, c *models.Customer) (*models.Customer, error) {
	_, err := m.customers.InsertOne(ctx, c)
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return nil, fmt.Errorf("insert customer: %w", err)
	}
	return m.GetCustomer(ctx, c.Phone)
}

func (m *Mongo) UpdateCustomer(ctx context.Context, phone string, upd models.ProfileUpdate, seenAt time.Time) (*models.Customer, error) {
	c, err := m.GetCustomer(ctx, phone)
	if err != nil {
		return nil, err
	}
	applyProfileUpdate(c, upd)
	c.LastSeen = seenAt
	res, err := m.customers.ReplaceOne(ctx, bson.M{"_id": phone}, c)
	if err != nil {
		return nil, fmt.Errorf("update customer: %w", err)
	}
	if res.MatchedCount == 0 {
		return nil, models.ErrNotFound
	}
	return c, nil
}

func (m *Mongo) ListRecentCustomers(ctx context.Context, limit int) ([]models.Customer, error) {
	opts := options.Find().SetSort(bson.D{{Key: "lastSeen", Value: -1}}).SetLimit(int64(limit))
	cur, err := m.customers.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	var out []models.Customer
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Mongo) FindAvailableMenuItemByName(ctx context.Context, name string) (*models.MenuItem, error) {
	var it models.MenuItem
	err := m.menu.FindOne(ctx, bson.M{"name": name, "available": true},
		options.FindOne().SetCollation(caseInsensitive)).Decode(&it)
	if err != nil {
		return nil, mongoNotFound(err)
	}
	return &it, nil
}

func (m *Mongo) findMenu(ctx context.Context, filter bson.M) ([]models.MenuItem, error) {
	cur, err := m.menu.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	var out []models.MenuItem
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	sortMenu(out)
	return out, nil
}

func (m *Mongo) ListAvailableMenu(ctx context.Context) ([]models.MenuItem, error) {
	return m.findMenu(ctx, bson.M{"available": true})
}

func (m *Mongo) ListAllMenu(ctx context.Context) ([]models.MenuItem, error) {
	return m.findMenu(ctx, bson.M{})
}

func (m *Mongo) GetMenuItem(ctx context.Context, id string) (*models.MenuItem, error) {
	var it models.MenuItem
	if err := m.menu.FindOne(ctx, bson.M{"_id": id}).Decode(&it); err != nil {
		return nil, mongoNotFound(err)
	}
	return &it, nil
}

func (m *Mongo) InsertMenuItem(ctx context.Context, it *models.MenuItem) error {
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	_, err := m.menu.InsertOne(ctx, it)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateName
	}
	return err
}

func (m *Mongo) UpdateMenuItem(ctx context.Context, it *models.MenuItem) error {
	res, err := m.menu.UpdateOne(ctx, bson.M{"_id": it.ID}, bson.M{"$set": bson.M{
		"category":    it.Category,
		"name":        it.Name,
		"price":       it.Price,
		"description": it.Description,
		"available":   it.Available,
		"trending":    it.Trending,
		"isNew":       it.IsNew,
		"updatedAt":   it.UpdatedAt,
	}})
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateName
	}
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (m *Mongo) DeleteMenuItem(ctx context.Context, id string) error {
	res, err := m.menu.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (m *Mongo) ListDeliveryRates(ctx context.Context) ([]models.DeliveryRate, error) {
	cur, err := m.rates.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "maxKm", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var out []models.DeliveryRate
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Mongo) ReplaceDeliveryRates(ctx context.Context, rates []models.DeliveryRate) error {
	if _, err := m.rates.DeleteMany(ctx, bson.M{}); err != nil {
		return err
	}
	if len(rates) == 0 {
		return nil
	}
	docs := make([]interface{}, len(rates))
	for i, r := range rates {
		docs[i] = r
	}
	_, err := m.rates.InsertMany(ctx, docs)
	return err
}

func (m *Mongo) InsertOrder(ctx context.Context, o *models.Order) error {
	if _, err := m.orders.InsertOne(ctx, o); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (m *Mongo) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var o models.Order
	if err := m.orders.FindOne(ctx, bson.M{"_id": id}).Decode(&o); err != nil {
		return nil, mongoNotFound(err)
	}
	return &o, nil
}

func (m *Mongo) SaveOrder(ctx context.Context, o *models.Order) error {
	res, err := m.orders.UpdateOne(ctx, bson.M{"_id": o.ID}, bson.M{"$set": bson.M{
		"status":          o.Status,
		"paymentMethod":   o.PaymentMethod,
		"paymentStatus":   o.PaymentStatus,
		"deliveryAddress": o.DeliveryAddress,
		"updatedAt":       o.UpdatedAt,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (m *Mongo) LatestOrderByStatus(ctx context.Context, phone, status string) (*models.Order, error) {
	var o models.Order
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if err := m.orders.FindOne(ctx, bson.M{"customerPhone": phone, "status": status}, opts).Decode(&o); err != nil {
		return nil, mongoNotFound(err)
	}
	return &o, nil
}

func (m *Mongo) ListOrders(ctx context.Context, f models.OrderFilter) ([]models.Order, error) {
	filter := bson.M{}
	if f.CustomerPhone != "" {
		filter["customerPhone"] = f.CustomerPhone
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}
	cur, err := m.orders.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var out []models.Order
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Mongo) InsertPaymentProof(ctx context.Context, p *models.PaymentProof) error {
	_, err := m.proofs.InsertOne(ctx, p)
	return err
}

func (m *Mongo) SaveOutboundMessage(ctx context.Context, msg *models.OutboundMessage) error {
	_, err := m.outbound.InsertOne(ctx, msg)
	return err
}

func (m *Mongo) StatusNotifiedSince(ctx context.Context, orderID, status string, since time.Time) (bool, error) {
	n, err := m.outbound.CountDocuments(ctx, bson.M{
		"orderId":   orderID,
		"status":    status,
		"createdAt": bson.M{"$gt": since},
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/newsdesk/internal/db"
	"github.com/newsdesk/internal/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultPassword 是生成账号的统一密码，仅用于本地演示数据。
const DefaultPassword = "newsdesk123"

var defaultCategories = []service.CategoryInput{
	{Name: "Breaking News", Description: "Developing stories"},
	{Name: "World"},
	{Name: "Politics"},
	{Name: "Business"},
	{Name: "Technology"},
	{Name: "Sports"},
}

// Options 控制生成的数据量。Seed 为 0 时使用当前时间作为随机种子。
type Options struct {
	Authors int
	Posts   int
	Seed    int64
	Force   bool
}

// Result 汇总本次生成的数据。
type Result struct {
	Users      int `json:"users"`
	Categories int `json:"categories"`
	Tags       int `json:"tags"`
	Posts      int `json:"posts"`
	Comments   int `json:"comments"`
	Views      int `json:"views"`
	Skipped    bool `json:"skipped"`
}

// Run 通过服务层写入演示数据，已有文章且未指定 Force 时跳过。
func Run(ctx context.Context, gdb *gorm.DB, opts Options, log *zap.Logger) (*Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Authors <= 0 {
		opts.Authors = 3
	}
	if opts.Posts <= 0 {
		opts.Posts = 20
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}

	result := &Result{}
	var existing int64
	if err := gdb.Model(&db.Post{}).Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 && !opts.Force {
		log.Info("posts already exist, skip seeding", zap.Int64("posts", existing))
		result.Skipped = true
		return result, nil
	}

	s := &seeder{
		faker:      gofakeit.New(opts.Seed),
		users:      service.NewUserService(gdb),
		categories: service.NewCategoryService(gdb),
		tags:       service.NewTagService(gdb),
		posts:      service.NewPostService(gdb).WithLogger(log),
		comments:   service.NewCommentService(gdb),
		analytics:  service.NewAnalyticsService(gdb),
		log:        log,
		result:     result,
	}

	authorIDs, err := s.seedUsers(opts.Authors)
	if err != nil {
		return nil, err
	}
	categoryIDs, err := s.seedCategories()
	if err != nil {
		return nil, err
	}
	tagIDs, err := s.seedTags(8)
	if err != nil {
		return nil, err
	}
	if err := s.seedPosts(ctx, opts.Posts, authorIDs, categoryIDs, tagIDs); err != nil {
		return nil, err
	}

	log.Info("seed finished",
		zap.Int("users", result.Users),
		zap.Int("posts", result.Posts),
		zap.Int("comments", result.Comments),
		zap.Int("views", result.Views),
	)
	return result, nil
}

type seeder struct {
	faker      *gofakeit.Faker
	users      *service.UserService
	categories *service.CategoryService
	tags       *service.TagService
	posts      *service.PostService
	comments   *service.CommentService
	analytics  *service.AnalyticsService
	log        *zap.Logger
	result     *Result
}

func (s *seeder) seedUsers(authors int) ([]uint, error) {
	inputs := []service.UserInput{{
		FirstName: s.faker.FirstName(),
		LastName:  s.faker.LastName(),
		Email:     "editor@newsdesk.local",
		Password:  DefaultPassword,
		Role:      db.RoleEditor,
	}}
	for i := 1; i <= authors; i++ {
		inputs = append(inputs, service.UserInput{
			FirstName: s.faker.FirstName(),
			LastName:  s.faker.LastName(),
			Email:     fmt.Sprintf("author%d@newsdesk.local", i),
			Password:  DefaultPassword,
			Role:      db.RoleAuthor,
		})
	}

	ids := make([]uint, 0, len(inputs))
	for _, input := range inputs {
		user, err := s.users.Create(input)
		if errors.Is(err, service.ErrEmailTaken) {
			s.log.Debug("user exists, skip", zap.String("email", input.Email))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("创建用户 %s 失败: %w", input.Email, err)
		}
		ids = append(ids, user.ID)
		s.result.Users++
	}
	if len(ids) == 0 {
		existing, err := s.users.List()
		if err != nil {
			return nil, err
		}
		for _, user := range existing {
			ids = append(ids, user.ID)
		}
	}
	if len(ids) == 0 {
		return nil, errors.New("no users available to own seeded posts")
	}
	return ids, nil
}

func (s *seeder) seedCategories() ([]uint, error) {
	ids := make([]uint, 0, len(defaultCategories))
	for _, input := range defaultCategories {
		category, err := s.categories.Create(input)
		if errors.Is(err, service.ErrConflict) {
			existing, lookupErr := s.categories.GetBySlug(db.Slugify(input.Name))
			if lookupErr != nil {
				return nil, lookupErr
			}
			ids = append(ids, existing.ID)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("创建分类 %s 失败: %w", input.Name, err)
		}
		ids = append(ids, category.ID)
		s.result.Categories++
	}
	return ids, nil
}

func (s *seeder) seedTags(count int) ([]uint, error) {
	ids := make([]uint, 0, count)
	for attempts := 0; len(ids) < count && attempts < count*5; attempts++ {
		tag, err := s.tags.Create(strings.ToLower(s.faker.HipsterWord()))
		if errors.Is(err, service.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("创建标签失败: %w", err)
		}
		ids = append(ids, tag.ID)
		s.result.Tags++
	}
	return ids, nil
}

func (s *seeder) seedPosts(ctx context.Context, count int, authorIDs, categoryIDs, tagIDs []uint) error {
	statuses := []string{db.PostStatusPublished, db.PostStatusPublished, db.PostStatusPublished, db.PostStatusDraft, db.PostStatusArchived}
	now := time.Now()

	for i := 0; i < count; i++ {
		title := strings.TrimSuffix(s.faker.Sentence(s.faker.Number(4, 10)), ".")
		input := service.PostInput{
			Title:       title,
			Body:        s.faker.Paragraph(3, 5, 20, "\n\n"),
			Excerpt:     s.faker.Sentence(s.faker.Number(8, 16)),
			Status:      s.faker.RandomString(statuses),
			UserID:      authorIDs[s.faker.Number(0, len(authorIDs)-1)],
			CategoryIDs: s.pick(categoryIDs, 1, 2),
			TagIDs:      s.pick(tagIDs, 0, 3),
		}

		post, err := s.posts.Create(ctx, input)
		if errors.Is(err, service.ErrPostSlugTaken) {
			input.Title = fmt.Sprintf("%s %d", title, i+1)
			post, err = s.posts.Create(ctx, input)
		}
		if err != nil {
			s.log.Warn("create seeded post failed", zap.String("title", input.Title), zap.Error(err))
			continue
		}
		s.result.Posts++

		if !post.IsPublished() {
			continue
		}
		if err := s.seedEngagement(post.ID, now); err != nil {
			return err
		}
	}
	return nil
}

func (s *seeder) seedEngagement(postID uint, now time.Time) error {
	for c := s.faker.Number(0, 3); c > 0; c-- {
		comment, err := s.comments.Create(postID, service.CommentInput{
			AuthorName: s.faker.Name(),
			Body:       s.faker.Sentence(s.faker.Number(5, 20)),
		})
		if err != nil {
			return fmt.Errorf("创建评论失败: %w", err)
		}
		s.result.Comments++

		status := s.faker.RandomString([]string{db.CommentStatusApproved, db.CommentStatusApproved, db.CommentStatusSpam, db.CommentStatusPending})
		if status != db.CommentStatusPending {
			if _, err := s.comments.SetStatus(comment.ID, status); err != nil {
				return err
			}
		}
	}

	for v := s.faker.Number(0, 20); v > 0; v-- {
		at := s.faker.DateRange(now.AddDate(0, 0, -14), now)
		if _, err := s.analytics.RecordView(postID, nil, at); err != nil {
			return fmt.Errorf("记录浏览失败: %w", err)
		}
		s.result.Views++
	}
	return nil
}

// pick 随机选取 [min, max] 个不重复的 id。
func (s *seeder) pick(ids []uint, min, max int) []uint {
	if len(ids) == 0 {
		return nil
	}
	if max > len(ids) {
		max = len(ids)
	}
	if min > max {
		min = max
	}
	n := s.faker.Number(min, max)
	shuffled := append([]uint(nil), ids...)
	s.faker.ShuffleAnySlice(shuffled)
	return shuffled[:n]
}
